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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/coursely/coursely/internal/audit"
	"github.com/coursely/coursely/internal/identity"
	"github.com/coursely/coursely/internal/observability/logger"
	"github.com/coursely/coursely/internal/observability/metrics"
)

const tracerName = "github.com/coursely/coursely/internal/authz"

// DefaultLookupTimeout bounds a single profile role lookup.
const DefaultLookupTimeout = 2 * time.Second

// ProfileStore reads the persistent profile record that backs role resolution.
type ProfileStore interface {
	// GetProfileRole returns the raw role column for userID, or ErrProfileNotFound.
	GetProfileRole(ctx context.Context, userID string) (string, error)
}

// RoleResolver is the single role resolution algorithm. Every call site that
// needs a role goes through Resolve; none re-implements the fallback chain.
type RoleResolver struct {
	profiles      ProfileStore
	auditLogger   audit.Logger
	metrics       *metrics.AccessMetrics
	lookupTimeout time.Duration
}

// NewRoleResolver creates a role resolver. A non-positive lookupTimeout uses DefaultLookupTimeout.
func NewRoleResolver(profiles ProfileStore, auditLogger audit.Logger, m *metrics.AccessMetrics, lookupTimeout time.Duration) *RoleResolver {
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &RoleResolver{
		profiles:      profiles,
		auditLogger:   auditLogger,
		metrics:       m,
		lookupTimeout: lookupTimeout,
	}
}

// Resolve returns exactly one role for p:
//  1. the server-issued claim, when it names a valid role;
//  2. else the profile record, when it names a valid role;
//  3. else DefaultRole.
//
// A failed or timed-out profile lookup degrades to DefaultRole and is logged.
// p.Metadata is never consulted.
func (r *RoleResolver) Resolve(ctx context.Context, p *identity.Principal) Resolution {
	if p == nil {
		return Resolution{Role: DefaultRole, Source: SourceDefault}
	}

	if role, ok := ParseRole(p.SecureRole); ok {
		return r.resolved(ctx, p, Resolution{Role: role, Source: SourceSecureClaim})
	}
	if p.SecureRole != "" {
		slog.WarnContext(ctx, "ignoring unrecognized secure role claim",
			logger.Component("authz"),
			logger.UserID(p.ID),
			logger.Role(p.SecureRole),
		)
	}

	raw, err := r.lookup(ctx, p.ID)
	switch {
	case errors.Is(err, ErrProfileNotFound):
		return r.resolved(ctx, p, Resolution{Role: DefaultRole, Source: SourceDefault})
	case err != nil:
		r.lookupFailed(ctx, p, err)
		return r.resolved(ctx, p, Resolution{Role: DefaultRole, Source: SourceDefault, Degraded: true})
	}

	role, ok := ParseRole(raw)
	if !ok {
		slog.WarnContext(ctx, "profile carries unrecognized role",
			logger.Component("authz"),
			logger.UserID(p.ID),
			logger.Role(raw),
		)
		return r.resolved(ctx, p, Resolution{Role: DefaultRole, Source: SourceDefault})
	}
	return r.resolved(ctx, p, Resolution{Role: role, Source: SourceProfile})
}

func (r *RoleResolver) lookup(ctx context.Context, userID string) (string, error) {
	if r.profiles == nil {
		return "", ErrProfileNotFound
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	lookupCtx, span := otel.Tracer(tracerName).Start(lookupCtx, "authz.profile_role_lookup")
	defer span.End()

	start := time.Now()
	raw, err := r.profiles.GetProfileRole(lookupCtx, userID)
	r.metrics.RoleLookupObserved(ctx, time.Since(start))

	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile lookup failed")
		return "", fmt.Errorf("%w: %w", ErrLookupFailure, err)
	}
	return raw, err
}

func (r *RoleResolver) lookupFailed(ctx context.Context, p *identity.Principal, err error) {
	reason := "error"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	r.metrics.RoleLookupFailed(ctx, reason)

	slog.ErrorContext(ctx, "profile role lookup failed, using default role",
		logger.Component("authz"),
		logger.UserID(p.ID),
		logger.Route(routeFrom(ctx)),
		logger.RoleSource(string(SourceProfile)),
		logger.Reason(reason),
		logger.Error(err),
	)
	r.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleLookupFailed,
		ActorID:  p.ID,
		Resource: routeFrom(ctx),
		Metadata: map[string]any{"source": string(SourceProfile), "reason": reason},
	})
}

func (r *RoleResolver) resolved(ctx context.Context, p *identity.Principal, res Resolution) Resolution {
	r.metrics.RoleResolved(ctx, string(res.Source))

	slog.DebugContext(ctx, "role resolved",
		logger.Component("authz"),
		logger.UserID(p.ID),
		logger.Role(res.Role.String()),
		logger.RoleSource(string(res.Source)),
	)
	if res.Role != DefaultRole {
		r.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeRoleResolved,
			ActorID:  p.ID,
			Resource: routeFrom(ctx),
			Metadata: map[string]any{"role": res.Role.String(), "source": string(res.Source)},
		})
	}
	return res
}
