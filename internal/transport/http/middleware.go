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

package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/coursely/coursely/internal/authz"
	"github.com/coursely/coursely/internal/guard"
	"github.com/coursely/coursely/internal/identity"
	"github.com/coursely/coursely/internal/observability/logger"
	"github.com/coursely/coursely/internal/session"
)

// Request authorization principles:
// 1. The session and the role are resolved at most once per request, through the scope
// 2. The role comes from the secure claim or the profile record, never from user_metadata
// 3. Every route passes the guard; handlers may narrow access but never widen it
//
// Anti-Patterns (FORBIDDEN):
// - Caching a resolved role beyond the request
// - Granting anything on a failed role lookup

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Log request start
			slog.DebugContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(getIPAddress(r)),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// ScopeMiddleware attaches a fresh request scope. The session is only
// resolved when something asks for the principal.
func ScopeMiddleware(sessions *session.Resolver, roles authz.RoleSource) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principalFn := func(ctx context.Context) (*identity.Principal, bool) {
				if sessions == nil {
					return nil, false
				}
				return sessions.Resolve(ctx, r)
			}
			scope := authz.NewScope(r.URL.Path, principalFn, roles)
			next.ServeHTTP(w, r.WithContext(authz.WithScope(r.Context(), scope)))
		})
	}
}

// GuardMiddleware enforces the route table on every request and renders
// denials. Page requests get a 303 or a 404; API requests get JSON.
func GuardMiddleware(g *guard.Guard) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := authz.ScopeFromContext(r.Context())
			if scope == nil {
				respondError(w, http.StatusInternalServerError, "internal error")
				return
			}

			d := g.Evaluate(r.Context(), scope, r.URL.Path)
			if d.Allowed() {
				next.ServeHTTP(w, r)
				return
			}
			renderDenial(w, r, d)
		})
	}
}

func renderDenial(w http.ResponseWriter, r *http.Request, d guard.Decision) {
	api := isAPIRequest(r)

	if d.Action != guard.ActionRedirect {
		if api {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		http.NotFound(w, r)
		return
	}

	if !api {
		http.Redirect(w, r, d.Location, http.StatusSeeOther)
		return
	}

	status, msg := http.StatusForbidden, "forbidden"
	if d.State == guard.StateDeniedUnauthenticated {
		status, msg = http.StatusUnauthorized, "not authenticated"
	}
	respondJSON(w, status, map[string]string{
		"error":    msg,
		"location": d.Location,
	})
}

func isAPIRequest(r *http.Request) bool {
	return r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/")
}

// CSRFMiddleware protects cookie-authenticated state-changing requests.
// We enforce a custom header 'X-CSRF-Token', which cross-site forms cannot set.
func CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only enforce for state-changing methods
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions || r.Method == http.MethodTrace {
			next.ServeHTTP(w, r)
			return
		}

		// Bearer tokens are not sent ambiently by browsers.
		if strings.HasPrefix(strings.ToLower(r.Header.Get("Authorization")), "bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get("X-CSRF-Token") == "" {
			slog.WarnContext(r.Context(), "missing CSRF token header", logger.Method(r.Method), logger.Path(r.URL.Path))
			respondError(w, http.StatusForbidden, "X-CSRF-Token header is required for state-changing operations")
			return
		}

		next.ServeHTTP(w, r)
	})
}
