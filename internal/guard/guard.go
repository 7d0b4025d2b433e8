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
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/coursely/coursely/internal/audit"
	"github.com/coursely/coursely/internal/authz"
	"github.com/coursely/coursely/internal/observability/logger"
	"github.com/coursely/coursely/internal/observability/metrics"
)

// State is a terminal guard state.
type State string

const (
	StateAllowed               State = "allowed"
	StateDeniedUnauthenticated State = "denied_unauthenticated"
	StateDeniedForbidden       State = "denied_forbidden"
)

// Action is the navigation outcome that goes with a State.
type Action string

const (
	ActionNone     Action = "none"
	ActionRedirect Action = "redirect"
	ActionNotFound Action = "not_found"
)

// Reasons recorded on denials.
const (
	ReasonNoSession    = "no_session"
	ReasonGuestOnly    = "guest_only"
	ReasonRoleMismatch = "role_mismatch"
)

// Decision is the guard's verdict for one request.
type Decision struct {
	State    State
	Action   Action
	Location string
	Rule     string
	Reason   string

	// Role is set when the rule required role resolution.
	Role authz.Role
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.State == StateAllowed
}

// Err maps the decision onto the authorization error taxonomy.
func (d Decision) Err() error {
	switch d.State {
	case StateDeniedUnauthenticated:
		return authz.ErrUnauthenticated
	case StateDeniedForbidden:
		return authz.ErrUnauthorized
	default:
		return nil
	}
}

// Config names the guard's redirect targets.
type Config struct {
	LoginPath     string
	DashboardPath string
}

// Guard enforces a route table.
type Guard struct {
	table       *Table
	cfg         Config
	auditLogger audit.Logger
	metrics     *metrics.AccessMetrics
}

// New creates a guard. The dashboard must be reachable by every authenticated
// principal and the login page by every anonymous one, otherwise denials loop.
func New(table *Table, cfg Config, auditLogger audit.Logger, m *metrics.AccessMetrics) (*Guard, error) {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.DashboardPath == "" {
		cfg.DashboardPath = "/dashboard"
	}
	if !isLocalPath(cfg.LoginPath) || !isLocalPath(cfg.DashboardPath) {
		return nil, fmt.Errorf("guard: login and dashboard paths must be local paths")
	}
	if a := table.Match(cfg.DashboardPath).Access; a != Authenticated && a != Public {
		return nil, fmt.Errorf("guard: dashboard %q must be open to any authenticated principal, got %s", cfg.DashboardPath, a)
	}
	if a := table.Match(cfg.LoginPath).Access; a != GuestOnly && a != Public {
		return nil, fmt.Errorf("guard: login %q must be open to anonymous visitors, got %s", cfg.LoginPath, a)
	}
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Guard{table: table, cfg: cfg, auditLogger: auditLogger, metrics: m}, nil
}

// Evaluate decides whether the request behind scope may reach route.
// Public routes never resolve the session; only Roles rules resolve the role.
func (g *Guard) Evaluate(ctx context.Context, scope *authz.Scope, route string) Decision {
	rule := g.table.Match(route)
	d := g.decide(ctx, scope, rule, route)
	d.Rule = rule.Name

	g.metrics.GuardDecision(ctx, string(d.State), d.Rule)
	if !d.Allowed() {
		g.denied(ctx, scope, route, d)
	}
	return d
}

func (g *Guard) decide(ctx context.Context, scope *authz.Scope, rule Rule, route string) Decision {
	if rule.Access == Public {
		return allow()
	}

	_, authenticated := scope.Principal(ctx)

	switch rule.Access {
	case GuestOnly:
		if authenticated {
			return Decision{
				State:    StateDeniedForbidden,
				Action:   ActionRedirect,
				Location: g.cfg.DashboardPath,
				Reason:   ReasonGuestOnly,
			}
		}
		return allow()

	case Authenticated:
		if !authenticated {
			return g.toLogin(route)
		}
		return allow()

	case Roles:
		if !authenticated {
			return g.toLogin(route)
		}
		res, _ := scope.Role(ctx)
		if rule.Permits(res.Role) {
			d := allow()
			d.Role = res.Role
			return d
		}
		d := Decision{State: StateDeniedForbidden, Reason: ReasonRoleMismatch, Role: res.Role}
		if rule.Denial == Hard {
			d.Action = ActionNotFound
		} else {
			d.Action = ActionRedirect
			d.Location = g.cfg.DashboardPath
		}
		return d
	}

	// Unknown access kinds are refused.
	return Decision{State: StateDeniedForbidden, Action: ActionNotFound, Reason: "unknown_access"}
}

func (g *Guard) toLogin(route string) Decision {
	location := g.cfg.LoginPath
	if isLocalPath(route) && NormalizePath(route) != NormalizePath(g.cfg.LoginPath) {
		location += "?next=" + url.QueryEscape(route)
	}
	return Decision{
		State:    StateDeniedUnauthenticated,
		Action:   ActionRedirect,
		Location: location,
		Reason:   ReasonNoSession,
	}
}

func (g *Guard) denied(ctx context.Context, scope *authz.Scope, route string, d Decision) {
	var userID string
	if p, ok := scope.Principal(ctx); ok {
		userID = p.ID
	}

	slog.InfoContext(ctx, "route access denied",
		logger.Component("guard"),
		logger.Route(route),
		logger.Rule(d.Rule),
		logger.Decision(string(d.State)),
		logger.Reason(d.Reason),
		logger.UserID(userID),
	)

	if d.State == StateDeniedForbidden && d.Reason == ReasonRoleMismatch {
		g.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAccessDenied,
			ActorID:  userID,
			Resource: route,
			Metadata: map[string]any{
				"rule":   d.Rule,
				"role":   d.Role.String(),
				"action": string(d.Action),
			},
		})
	}
}

func allow() Decision {
	return Decision{State: StateAllowed, Action: ActionNone}
}

// isLocalPath reports whether p is a same-origin absolute path, safe to use as a redirect target.
func isLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	return !strings.ContainsAny(p, "\r\n")
}
