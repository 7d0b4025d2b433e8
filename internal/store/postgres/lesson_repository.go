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

	"github.com/coursely/coursely/internal/authz"
	"github.com/coursely/coursely/internal/media"
)

// LessonRepository implements media.AccessReader
type LessonRepository struct {
	db *DB
}

// NewLessonRepository creates a new lesson repository
func NewLessonRepository(db *DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// ReadLessonMedia returns the lesson only when the caller may read it: a
// preview lesson of a published course, moderators and admins, the course
// teacher, or a student with an active enrollment. Anything else is
// media.ErrNoAccess, whether or not the lesson exists.
func (r *LessonRepository) ReadLessonMedia(ctx context.Context, userID string, role authz.Role, lessonID string) (media.Lesson, error) {
	var l media.Lesson
	err := r.db.pool.QueryRow(ctx, `
		SELECT l.id, l.course_id, l.media_key, l.is_preview
		FROM lessons l
		JOIN courses c ON c.id = l.course_id
		WHERE l.id = $1
		  AND (
			(l.is_preview AND c.published)
			OR $3::text IN ('moderator', 'admin')
			OR c.teacher_id = $2
			OR EXISTS (
				SELECT 1 FROM enrollments e
				WHERE e.course_id = l.course_id AND e.user_id = $2 AND e.status = 'active'
			)
		  )
	`, lessonID, userID, role.String()).Scan(&l.ID, &l.CourseID, &l.ObjectKey, &l.Preview)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return media.Lesson{}, media.ErrNoAccess
		}
		return media.Lesson{}, fmt.Errorf("failed to read lesson: %w", err)
	}
	return l, nil
}
