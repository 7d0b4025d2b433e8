package http

import (
	"context"

	"github.com/coursely/coursely/internal/authz"
	"github.com/coursely/coursely/internal/identity"
)

// currentPrincipal returns the request principal from the request scope.
func currentPrincipal(ctx context.Context) (*identity.Principal, bool) {
	scope := authz.ScopeFromContext(ctx)
	if scope == nil {
		return nil, false
	}
	return scope.Principal(ctx)
}

// currentRole returns the memoized role resolution for the request.
func currentRole(ctx context.Context) (authz.Resolution, bool) {
	scope := authz.ScopeFromContext(ctx)
	if scope == nil {
		return authz.Resolution{}, false
	}
	return scope.Role(ctx)
}

// GetUserID retrieves the authenticated user ID, resolving the session if needed.
func GetUserID(ctx context.Context) string {
	if p, ok := currentPrincipal(ctx); ok {
		return p.ID
	}
	return ""
}
