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

// @title Coursely API
// @version 1.0
// @BasePath /api/v1
// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name coursely_access_token

package http

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/coursely/coursely/internal/audit"
	"github.com/coursely/coursely/internal/authz"
	"github.com/coursely/coursely/internal/catalog"
	"github.com/coursely/coursely/internal/guard"
	"github.com/coursely/coursely/internal/media"
	"github.com/coursely/coursely/internal/observability/logger"
	"github.com/coursely/coursely/internal/profile"
	"github.com/coursely/coursely/internal/session"
)

// HealthChecker reports dependency health for /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// CookieConfig describes the access token cookie cleared on sign-out
type CookieConfig struct {
	Name   string
	Domain string
	Path   string
	Secure bool
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	sessions     *session.Resolver
	roles        authz.RoleSource
	catalog      *catalog.Service
	media        *media.Service
	roleRequests *profile.Service
	health       HealthChecker
	auditLogger  audit.Logger
	cookie       CookieConfig
}

// NewHandler creates a new HTTP handler
func NewHandler(
	sessions *session.Resolver,
	roles authz.RoleSource,
	catalogService *catalog.Service,
	mediaService *media.Service,
	roleRequests *profile.Service,
	health HealthChecker,
	auditLogger audit.Logger,
	cookie CookieConfig,
) *Handler {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	return &Handler{
		sessions:     sessions,
		roles:        roles,
		catalog:      catalogService,
		media:        mediaService,
		roleRequests: roleRequests,
		health:       health,
		auditLogger:  auditLogger,
		cookie:       cookie,
	}
}

// RouterConfig holds router-level settings
type RouterConfig struct {
	RequestTimeout time.Duration

	// Static is the built frontend. Nil disables SPA serving.
	Static fs.FS
}

// NewRouter creates a new HTTP router. Every request passes the route guard
// before it reaches a handler or the frontend.
func NewRouter(h *Handler, rateLimiter *RateLimiter, g *guard.Guard, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(ScopeMiddleware(h.sessions, h.roles))
	r.Use(GuardMiddleware(g))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(CSRFMiddleware)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusNotFound, "not found")
		})

		r.Get("/courses", h.ListCourses)
		r.Get("/courses/{slug}", h.GetCourse)

		r.Post("/auth/logout", h.Logout)
		r.Get("/me", h.GetCurrentUser)
		r.Get("/media/{lessonID}/url", h.GetMediaURL)
		r.Post("/role-requests", h.CreateRoleRequest)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/role-requests", h.ListRoleRequests)
			r.Post("/role-requests/{requestID}/approve", h.ApproveRoleRequest)
			r.Post("/role-requests/{requestID}/reject", h.RejectRoleRequest)
		})
	})

	if cfg.Static != nil {
		r.Handle("/*", SPAHandler{StaticFS: cfg.Static})
	}

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service and its database are reachable
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			slog.ErrorContext(r.Context(), "health check failed", logger.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "coursely",
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "coursely",
	})
}

// Helper functions
func (h *Handler) clearAccessCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
