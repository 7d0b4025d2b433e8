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
	"log/slog"
	"net/http"

	"github.com/coursely/coursely/internal/audit"
	"github.com/coursely/coursely/internal/observability/logger"
)

// CurrentUserResponse describes the signed-in principal
type CurrentUserResponse struct {
	UserID      string   `json:"user_id" example:"6f1c2c1e-8d0a-4f3e-9a59-1d4f3b7e2a10"`
	Email       string   `json:"email" example:"ada@example.com"`
	DisplayName string   `json:"display_name" example:"Ada"`
	Role        string   `json:"role" example:"teacher"`
	RoleSource  string   `json:"role_source" example:"profile"`
	Providers   []string `json:"providers"`
}

// GetCurrentUser returns the current principal and resolved role
// @Summary Get Current User
// @Description Retrieve the signed-in principal with its resolved role
// @Tags Auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} CurrentUserResponse
// @Failure 401 {object} map[string]string
// @Router /me [get]
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	res, _ := currentRole(r.Context())

	providers := p.Providers
	if providers == nil {
		providers = []string{}
	}
	respondJSON(w, http.StatusOK, CurrentUserResponse{
		UserID:      p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName(),
		Role:        res.Role.String(),
		RoleSource:  string(res.Source),
		Providers:   providers,
	})
}

// Logout handles sign-out
// @Summary Logout
// @Description Revoke the current session and clear the access token cookie
// @Tags Auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	// The cookie goes even when the credential is already unusable.
	h.clearAccessCookie(w)

	p, ok := currentPrincipal(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.sessions.Revoke(r.Context(), p); err != nil {
		slog.ErrorContext(r.Context(), "failed to revoke session",
			logger.UserID(p.ID),
			logger.Error(err),
		)
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeLogout,
		ActorID:   p.ID,
		Resource:  "session",
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
		Metadata:  map[string]any{"session_id": p.SessionID},
	})

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}
