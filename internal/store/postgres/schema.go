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
	"fmt"

	"github.com/jackc/pgx/v5"
)

// schema is applied in order. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL DEFAULT '',
		full_name  TEXT NOT NULL DEFAULT '',
		role       TEXT NOT NULL DEFAULT 'student'
		           CHECK (role IN ('student', 'teacher', 'moderator', 'admin')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS courses (
		id               TEXT PRIMARY KEY,
		slug             TEXT NOT NULL UNIQUE,
		title            TEXT NOT NULL,
		summary          TEXT NOT NULL DEFAULT '',
		teacher_id       TEXT NOT NULL REFERENCES profiles(id),
		currency         TEXT NOT NULL DEFAULT 'USD',
		price_minor      BIGINT NOT NULL DEFAULT 0 CHECK (price_minor >= 0),
		discount_percent INTEGER NOT NULL DEFAULT 0 CHECK (discount_percent BETWEEN 0 AND 100),
		discount_ends_at TIMESTAMPTZ,
		published        BOOLEAN NOT NULL DEFAULT false,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_courses_published_created ON courses(created_at DESC) WHERE published`,
	`CREATE INDEX IF NOT EXISTS idx_courses_teacher_id ON courses(teacher_id)`,

	`CREATE TABLE IF NOT EXISTS lessons (
		id         TEXT PRIMARY KEY,
		course_id  TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		title      TEXT NOT NULL,
		position   INTEGER NOT NULL DEFAULT 0,
		media_key  TEXT NOT NULL DEFAULT '',
		is_preview BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lessons_course_id ON lessons(course_id, position)`,

	`CREATE TABLE IF NOT EXISTS enrollments (
		user_id    TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		course_id  TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		status     TEXT NOT NULL DEFAULT 'active'
		           CHECK (status IN ('active', 'refunded', 'cancelled')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, course_id)
	)`,

	`CREATE TABLE IF NOT EXISTS role_requests (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		requested_role TEXT NOT NULL CHECK (requested_role IN ('teacher', 'moderator', 'admin')),
		reason         TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT 'pending'
		               CHECK (status IN ('pending', 'approved', 'rejected')),
		reviewed_by    TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		reviewed_at    TIMESTAMPTZ
	)`,
	// At most one open request per user.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_role_requests_one_pending ON role_requests(user_id) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS idx_role_requests_status_created ON role_requests(status, created_at)`,
}

// Migrate applies the schema in a single transaction
func (db *DB) Migrate(ctx context.Context) error {
	return db.InTx(ctx, func(tx pgx.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
			}
		}
		return nil
	})
}
