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
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coursely/coursely/internal/catalog"
	"github.com/coursely/coursely/internal/observability/logger"
)

// PriceResponse is a course price in minor units
type PriceResponse struct {
	Currency        string     `json:"currency" example:"USD"`
	OriginalMinor   int64      `json:"original_minor" example:"4900"`
	FinalMinor      int64      `json:"final_minor" example:"3920"`
	SavingsMinor    int64      `json:"savings_minor" example:"980"`
	DiscountPercent int        `json:"discount_percent" example:"20"`
	DiscountActive  bool       `json:"discount_active"`
	DiscountEndsAt  *time.Time `json:"discount_ends_at,omitempty"`
}

// CourseResponse is a public course listing
type CourseResponse struct {
	ID        string        `json:"id"`
	Slug      string        `json:"slug" example:"go-101"`
	Title     string        `json:"title" example:"Go 101"`
	Summary   string        `json:"summary"`
	TeacherID string        `json:"teacher_id"`
	Price     PriceResponse `json:"price"`
}

func toCourseResponse(l catalog.Listing) CourseResponse {
	return CourseResponse{
		ID:        l.Course.ID,
		Slug:      l.Course.Slug,
		Title:     l.Course.Title,
		Summary:   l.Course.Summary,
		TeacherID: l.Course.TeacherID,
		Price: PriceResponse{
			Currency:        l.Price.Currency,
			OriginalMinor:   l.Price.OriginalMinor,
			FinalMinor:      l.Price.FinalMinor,
			SavingsMinor:    l.Price.SavingsMinor,
			DiscountPercent: l.Price.DiscountPercent,
			DiscountActive:  l.Price.DiscountActive,
			DiscountEndsAt:  l.Price.DiscountEndsAt,
		},
	}
}

// ListCourses lists published courses
// @Summary List Courses
// @Description List published courses with their current price
// @Tags Catalog
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /courses [get]
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	limit, err1 := queryInt(r, "limit")
	offset, err2 := queryInt(r, "offset")
	if err1 != nil || err2 != nil {
		respondError(w, http.StatusBadRequest, "limit and offset must be integers")
		return
	}

	listings, err := h.catalog.List(r.Context(), catalog.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidListing) {
			respondError(w, http.StatusBadRequest, "invalid paging parameters")
			return
		}
		slog.ErrorContext(r.Context(), "failed to list courses", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}

	courses := make([]CourseResponse, 0, len(listings))
	for _, l := range listings {
		courses = append(courses, toCourseResponse(l))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"courses": courses,
	})
}

// GetCourse returns one published course
// @Summary Get Course
// @Description Retrieve a published course by slug
// @Tags Catalog
// @Produce json
// @Param slug path string true "Course slug"
// @Success 200 {object} CourseResponse
// @Failure 404 {object} map[string]string
// @Router /courses/{slug} [get]
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	listing, err := h.catalog.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, catalog.ErrCourseNotFound) {
			respondError(w, http.StatusNotFound, "course not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get course", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get course")
		return
	}
	respondJSON(w, http.StatusOK, toCourseResponse(listing))
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
