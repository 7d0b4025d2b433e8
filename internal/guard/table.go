// Copyright 2026 The Coursely Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package guard

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/coursely/coursely/internal/authz"
)

// Access is the requirement a route declares.
type Access int

const (
	// Public routes need no session.
	Public Access = iota
	// GuestOnly routes (sign-in, registration) are for anonymous visitors only.
	GuestOnly
	// Authenticated routes accept any signed-in principal.
	Authenticated
	// Roles routes accept only principals whose role is in the rule's allow-set.
	Roles
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case GuestOnly:
		return "guest_only"
	case Authenticated:
		return "authenticated"
	case Roles:
		return "roles"
	default:
		return fmt.Sprintf("access(%d)", int(a))
	}
}

// Denial is how a Roles rule refuses a principal outside its allow-set.
type Denial int

const (
	// Soft redirects to the dashboard.
	Soft Denial = iota
	// Hard answers not found, hiding that the area exists.
	Hard
)

// Rule maps a route prefix to its requirement.
type Rule struct {
	Name   string
	Prefix string
	Access Access
	Allow  []authz.Role
	Denial Denial
}

// Permits reports whether role is in the rule's allow-set.
func (r Rule) Permits(role authz.Role) bool {
	for _, allowed := range r.Allow {
		if allowed == role {
			return true
		}
	}
	return false
}

var fallbackRule = Rule{Name: "default", Prefix: "/", Access: Public}

// Table is an immutable set of rules evaluated by longest matching prefix.
type Table struct {
	rules []Rule
}

// NewTable validates rules and orders them for matching.
func NewTable(rules ...Rule) (*Table, error) {
	seen := make(map[string]bool, len(rules))
	out := make([]Rule, 0, len(rules))

	for _, r := range rules {
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("rule %q: prefix %q must start with /", r.Name, r.Prefix)
		}
		r.Prefix = NormalizePath(r.Prefix)
		if seen[r.Prefix] {
			return nil, fmt.Errorf("rule %q: duplicate prefix %q", r.Name, r.Prefix)
		}
		seen[r.Prefix] = true

		if r.Access == Roles && len(r.Allow) == 0 {
			return nil, fmt.Errorf("rule %q: roles rule needs a non-empty allow-set", r.Name)
		}
		for _, role := range r.Allow {
			if _, ok := authz.ParseRole(string(role)); !ok {
				return nil, fmt.Errorf("rule %q: unknown role %q", r.Name, role)
			}
		}
		if r.Name == "" {
			r.Name = r.Prefix
		}
		r.Allow = append([]authz.Role(nil), r.Allow...)
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Prefix) > len(out[j].Prefix)
	})
	return &Table{rules: out}, nil
}

// Match returns the rule with the longest prefix covering p. Unmatched paths are public.
func (t *Table) Match(p string) Rule {
	p = NormalizePath(p)
	for _, r := range t.rules {
		if covers(r.Prefix, p) {
			return r
		}
	}
	return fallbackRule
}

func covers(prefix, p string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// NormalizePath canonicalizes a request path for matching: it is cleaned,
// lower-cased, and route-group segments such as "(admin)" are unwrapped to
// "admin" so a grouped path cannot slip past the rule for its area.
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}
	p = path.Clean("/" + strings.ToLower(p))

	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	kept := segments[:0]
	for _, s := range segments {
		for len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
			s = s[1 : len(s)-1]
		}
		if s == "" {
			continue
		}
		kept = append(kept, s)
	}
	// Unwrapping can expose dot segments, so clean again.
	return path.Clean("/" + strings.Join(kept, "/"))
}

// DefaultTable is the production route table.
func DefaultTable() *Table {
	staff := []authz.Role{authz.RoleAdmin}
	t, err := NewTable(
		Rule{Name: "admin", Prefix: "/admin", Access: Roles, Allow: staff, Denial: Soft},
		Rule{Name: "dashboard_admin", Prefix: "/dashboard/admin", Access: Roles, Allow: staff, Denial: Soft},
		Rule{Name: "dashboard_moderator", Prefix: "/dashboard/moderator", Access: Roles, Allow: []authz.Role{authz.RoleModerator}, Denial: Hard},
		Rule{Name: "dashboard_teacher", Prefix: "/dashboard/teacher", Access: Roles, Allow: []authz.Role{authz.RoleTeacher}, Denial: Hard},
		Rule{Name: "dashboard_student", Prefix: "/dashboard/student", Access: Authenticated},
		Rule{Name: "dashboard", Prefix: "/dashboard", Access: Authenticated},
		Rule{Name: "checkout", Prefix: "/checkout", Access: Authenticated},
		Rule{Name: "learn", Prefix: "/learn", Access: Authenticated},
		Rule{Name: "profile", Prefix: "/profile", Access: Authenticated},
		Rule{Name: "login", Prefix: "/login", Access: GuestOnly},
		Rule{Name: "register", Prefix: "/register", Access: GuestOnly},
		Rule{Name: "forgot_password", Prefix: "/forgot-password", Access: GuestOnly},
		Rule{Name: "api_admin", Prefix: "/api/v1/admin", Access: Roles, Allow: staff, Denial: Soft},
		Rule{Name: "api_me", Prefix: "/api/v1/me", Access: Authenticated},
		Rule{Name: "api_media", Prefix: "/api/v1/media", Access: Authenticated},
		Rule{Name: "api_role_requests", Prefix: "/api/v1/role-requests", Access: Authenticated},
	)
	if err != nil {
		panic(fmt.Sprintf("guard: invalid default table: %v", err))
	}
	return t
}
