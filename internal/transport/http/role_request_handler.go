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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coursely/coursely/internal/authz"
	"github.com/coursely/coursely/internal/identity"
	"github.com/coursely/coursely/internal/observability/logger"
	"github.com/coursely/coursely/internal/profile"
)

// CreateRoleRequestRequest asks for a higher role
type CreateRoleRequestRequest struct {
	Role   string `json:"role" binding:"required" example:"teacher"`
	Reason string `json:"reason" example:"I run the Go study group"`
}

// RoleRequestResponse describes a role request
type RoleRequestResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	RequestedRole string     `json:"requested_role"`
	Reason        string     `json:"reason"`
	Status        string     `json:"status"`
	ReviewedBy    *string    `json:"reviewed_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
}

func toRoleRequestResponse(req *profile.RoleRequest) RoleRequestResponse {
	return RoleRequestResponse{
		ID:            req.ID,
		UserID:        req.UserID,
		RequestedRole: req.RequestedRole.String(),
		Reason:        req.Reason,
		Status:        req.Status,
		ReviewedBy:    req.ReviewedBy,
		CreatedAt:     req.CreatedAt,
		ReviewedAt:    req.ReviewedAt,
	}
}

// CreateRoleRequest files a role request for the caller
// @Summary Request Role
// @Description Ask an admin to grant a teacher, moderator or admin role
// @Tags Roles
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body CreateRoleRequestRequest true "Requested role"
// @Success 201 {object} RoleRequestResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /role-requests [post]
func (h *Handler) CreateRoleRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var body CreateRoleRequestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.roleRequests.Request(r.Context(), p.ID, body.Role, body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrInvalidRole), errors.Is(err, profile.ErrStudentRole):
			respondError(w, http.StatusBadRequest, "role must be teacher, moderator or admin")
		case errors.Is(err, profile.ErrReasonTooLong):
			respondError(w, http.StatusBadRequest, "reason too long")
		case errors.Is(err, profile.ErrPendingExists):
			respondError(w, http.StatusConflict, "a role request is already pending")
		default:
			slog.ErrorContext(r.Context(), "failed to create role request", logger.UserID(p.ID), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to create role request")
		}
		return
	}

	respondJSON(w, http.StatusCreated, toRoleRequestResponse(req))
}

// ListRoleRequests lists pending role requests
// @Summary List Pending Role Requests
// @Description Admin only
// @Tags Admin
// @Produce json
// @Security CookieAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Failure 403 {object} map[string]string
// @Router /admin/role-requests [get]
func (h *Handler) ListRoleRequests(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}
	limit, err1 := queryInt(r, "limit")
	offset, err2 := queryInt(r, "offset")
	if err1 != nil || err2 != nil {
		respondError(w, http.StatusBadRequest, "limit and offset must be integers")
		return
	}

	reqs, err := h.roleRequests.ListPending(r.Context(), limit, offset)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list role requests", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list role requests")
		return
	}

	out := make([]RoleRequestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toRoleRequestResponse(req))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"role_requests": out,
	})
}

// ApproveRoleRequest grants a pending request
// @Summary Approve Role Request
// @Description Admin only. Writes the role to the user's profile.
// @Tags Admin
// @Produce json
// @Security CookieAuth
// @Param requestID path string true "Request ID"
// @Success 200 {object} RoleRequestResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /admin/role-requests/{requestID}/approve [post]
func (h *Handler) ApproveRoleRequest(w http.ResponseWriter, r *http.Request) {
	h.reviewRoleRequest(w, r, h.roleRequests.Approve)
}

// RejectRoleRequest declines a pending request
// @Summary Reject Role Request
// @Description Admin only
// @Tags Admin
// @Produce json
// @Security CookieAuth
// @Param requestID path string true "Request ID"
// @Success 200 {object} RoleRequestResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /admin/role-requests/{requestID}/reject [post]
func (h *Handler) RejectRoleRequest(w http.ResponseWriter, r *http.Request) {
	h.reviewRoleRequest(w, r, h.roleRequests.Reject)
}

type reviewFunc func(ctx context.Context, id, reviewerID string) (*profile.RoleRequest, error)

func (h *Handler) reviewRoleRequest(w http.ResponseWriter, r *http.Request, review reviewFunc) {
	reviewer, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	req, err := review(r.Context(), chi.URLParam(r, "requestID"), reviewer.ID)
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrRequestNotFound):
			respondError(w, http.StatusNotFound, "role request not found")
		case errors.Is(err, profile.ErrNotPending):
			respondError(w, http.StatusConflict, "role request already decided")
		case errors.Is(err, profile.ErrSelfReview):
			respondError(w, http.StatusForbidden, "cannot review your own request")
		default:
			slog.ErrorContext(r.Context(), "failed to review role request", logger.UserID(reviewer.ID), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to review role request")
		}
		return
	}
	respondJSON(w, http.StatusOK, toRoleRequestResponse(req))
}

// requireAdmin re-checks the admin role inside the handler. The route table
// already limits /api/v1/admin; this holds if the table is ever loosened.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (*identity.Principal, bool) {
	p, ok := currentPrincipal(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return nil, false
	}
	if res, _ := currentRole(r.Context()); res.Role != authz.RoleAdmin {
		respondError(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return p, true
}
