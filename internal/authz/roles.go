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

package authz

import "strings"

// -----------------------------------------------------------------------------
// Role Constants
// These are the canonical role names stored in profiles.role and in the
// app_metadata.role claim. Roles are not hierarchical: every protected area
// declares an explicit allow-set.
// -----------------------------------------------------------------------------

// Role is the sole unit of authorization granularity.
type Role string

const (
	RoleStudent   Role = "student"
	RoleTeacher   Role = "teacher"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// DefaultRole is the least-privileged role used whenever no trusted source yields one.
const DefaultRole = RoleStudent

// AllRoles lists every valid role.
var AllRoles = []Role{RoleStudent, RoleTeacher, RoleModerator, RoleAdmin}

// ParseRole validates a role name. Surrounding whitespace and case are ignored.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleStudent, RoleTeacher, RoleModerator, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

func (r Role) String() string {
	return string(r)
}

// -----------------------------------------------------------------------------
// Role Sources
// Ordered by trust, highest first. Client-writable metadata is not a source.
// -----------------------------------------------------------------------------

// Source names where a resolved role came from.
type Source string

const (
	SourceSecureClaim Source = "secure_claim"
	SourceProfile     Source = "profile"
	SourceDefault     Source = "default"
)

// Resolution is the outcome of role resolution for one principal.
type Resolution struct {
	Role   Role
	Source Source

	// Degraded is set when the profile lookup failed and the default was used.
	Degraded bool
}
