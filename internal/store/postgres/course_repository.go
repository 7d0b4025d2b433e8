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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/coursely/coursely/internal/catalog"
)

const courseColumns = `id, slug, title, summary, teacher_id, currency, price_minor,
	discount_percent, discount_ends_at, published, created_at, updated_at`

// CourseRepository implements catalog.Repository
type CourseRepository struct {
	db *DB
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(db *DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// ListPublished returns published courses, newest first
func (r *CourseRepository) ListPublished(ctx context.Context, limit, offset int) ([]*catalog.Course, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+courseColumns+`
		FROM courses
		WHERE published
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*catalog.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

// GetPublishedBySlug retrieves a published course
func (r *CourseRepository) GetPublishedBySlug(ctx context.Context, slug string) (*catalog.Course, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+courseColumns+`
		FROM courses
		WHERE slug = $1 AND published
	`, slug)
	c, err := scanCourse(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return c, nil
}

func scanCourse(row pgx.Row) (*catalog.Course, error) {
	var c catalog.Course
	err := row.Scan(
		&c.ID, &c.Slug, &c.Title, &c.Summary, &c.TeacherID, &c.Currency, &c.PriceMinor,
		&c.DiscountPercent, &c.DiscountEndsAt, &c.Published, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
