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

import (
	"context"
	"sync"

	"github.com/coursely/coursely/internal/identity"
)

// PrincipalFunc resolves the request principal, reporting false for anonymous.
type PrincipalFunc func(ctx context.Context) (*identity.Principal, bool)

// RoleSource resolves a role for an authenticated principal.
type RoleSource interface {
	Resolve(ctx context.Context, p *identity.Principal) Resolution
}

// Scope memoizes principal and role resolution for one request. It must be
// created per request and never shared across requests.
type Scope struct {
	route       string
	principalFn PrincipalFunc
	roles       RoleSource

	principalOnce sync.Once
	principal     *identity.Principal
	authenticated bool

	roleOnce   sync.Once
	resolution Resolution
}

// NewScope creates a request scope for route.
func NewScope(route string, principalFn PrincipalFunc, roles RoleSource) *Scope {
	return &Scope{
		route:       route,
		principalFn: principalFn,
		roles:       roles,
	}
}

// Route returns the route the scope was created for.
func (s *Scope) Route() string {
	return s.route
}

// Principal resolves the request principal at most once.
func (s *Scope) Principal(ctx context.Context) (*identity.Principal, bool) {
	s.principalOnce.Do(func() {
		if s.principalFn == nil {
			return
		}
		s.principal, s.authenticated = s.principalFn(ctx)
		if s.principal == nil {
			s.authenticated = false
		}
	})
	return s.principal, s.authenticated
}

// Role resolves the principal's role at most once. It reports false for anonymous requests.
func (s *Scope) Role(ctx context.Context) (Resolution, bool) {
	p, ok := s.Principal(ctx)
	if !ok {
		return Resolution{}, false
	}
	s.roleOnce.Do(func() {
		if s.roles == nil {
			s.resolution = Resolution{Role: DefaultRole, Source: SourceDefault}
			return
		}
		s.resolution = s.roles.Resolve(withRoute(ctx, s.route), p)
	})
	return s.resolution, true
}

type contextKey string

const (
	scopeKey contextKey = "authz_scope"
	routeKey contextKey = "authz_route"
)

// WithScope attaches s to ctx.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// ScopeFromContext returns the request scope, or nil when none was attached.
func ScopeFromContext(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey).(*Scope)
	return s
}

func withRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey, route)
}

func routeFrom(ctx context.Context) string {
	r, _ := ctx.Value(routeKey).(string)
	return r
}
