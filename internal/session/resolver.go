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

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coursely/coursely/internal/identity"
	"github.com/coursely/coursely/internal/observability/logger"
)

// Resolver answers "who is making this request, if anyone?".
type Resolver struct {
	verifier    *identity.Verifier
	revocations RevocationStore
	cookieName  string
	now         func() time.Time
}

// NewResolver creates a session resolver. revocations may be nil when sign-out
// revocation is not deployed.
func NewResolver(verifier *identity.Verifier, revocations RevocationStore, cookieName string) *Resolver {
	return &Resolver{
		verifier:    verifier,
		revocations: revocations,
		cookieName:  cookieName,
		now:         time.Now,
	}
}

// Resolve returns the principal behind req. A missing credential is the normal
// anonymous case and is not logged. A credential that fails validation is also
// anonymous, but the failure is logged with its reason.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*identity.Principal, bool) {
	token := TokenFromRequest(req, r.cookieName)
	if token == "" {
		return nil, false
	}

	p, err := r.principal(ctx, token)
	if err != nil {
		slog.WarnContext(ctx, "session credential rejected",
			logger.Component("session"),
			logger.Reason(reasonFor(err)),
			logger.Error(err),
		)
		return nil, false
	}
	return p, true
}

func (r *Resolver) principal(ctx context.Context, token string) (*identity.Principal, error) {
	claims, err := r.verifier.Verify(token, r.now())
	if err != nil {
		return nil, err
	}
	p := claims.Principal()

	if r.revocations != nil && p.SessionID != "" {
		revoked, err := r.revocations.IsRevoked(ctx, p.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to check revocation: %w", err)
		}
		if revoked {
			return nil, ErrSessionRevoked
		}
	}
	return p, nil
}

// Revoke ends p's session ahead of token expiry.
func (r *Resolver) Revoke(ctx context.Context, p *identity.Principal) error {
	if p == nil || p.SessionID == "" {
		return ErrNoSession
	}
	if r.revocations == nil {
		return nil
	}
	until := p.ExpiresAt
	if until.IsZero() {
		until = r.now().Add(24 * time.Hour)
	}
	// Cover the verifier's clock skew window.
	until = until.Add(time.Minute)
	if err := r.revocations.Revoke(ctx, p.SessionID, until); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// TokenFromRequest extracts the access token from the session cookie, falling
// back to an Authorization bearer header.
func TokenFromRequest(req *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := req.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	scheme, token, ok := strings.Cut(req.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, identity.ErrExpiredToken):
		return ReasonExpiredToken
	case errors.Is(err, ErrSessionRevoked):
		return ReasonRevoked
	case errors.Is(err, identity.ErrInvalidToken):
		return ReasonInvalidToken
	default:
		return ReasonRevocationLookup
	}
}
