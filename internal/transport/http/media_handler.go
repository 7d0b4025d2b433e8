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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coursely/coursely/internal/authz"
	"github.com/coursely/coursely/internal/media"
	"github.com/coursely/coursely/internal/observability/logger"
)

// MediaURLResponse carries a signed lesson media URL
type MediaURLResponse struct {
	LessonID  string    `json:"lesson_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetMediaURL issues a signed URL for a lesson's media
// @Summary Get Lesson Media URL
// @Description Issue a short-lived signed URL when the caller may read the lesson
// @Tags Media
// @Produce json
// @Security CookieAuth
// @Param lessonID path string true "Lesson ID"
// @Success 200 {object} MediaURLResponse
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /media/{lessonID}/url [get]
func (h *Handler) GetMediaURL(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	res, _ := currentRole(r.Context())

	signed, err := h.media.SignedURL(r.Context(), p, res.Role, chi.URLParam(r, "lessonID"))
	if err != nil {
		switch {
		case errors.Is(err, media.ErrForbidden):
			respondError(w, http.StatusForbidden, "forbidden")
		case errors.Is(err, authz.ErrUnauthenticated):
			respondError(w, http.StatusUnauthorized, "not authenticated")
		default:
			slog.ErrorContext(r.Context(), "failed to issue media url",
				logger.UserID(p.ID),
				logger.Error(err),
			)
			respondError(w, http.StatusInternalServerError, "failed to issue media url")
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, MediaURLResponse{
		LessonID:  signed.LessonID,
		URL:       signed.URL,
		ExpiresAt: signed.ExpiresAt,
	})
}
