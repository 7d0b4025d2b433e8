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
)

// ProfileRepository implements authz.ProfileStore
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetProfileRole returns the stored role column for userID
func (r *ProfileRepository) GetProfileRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := r.db.pool.QueryRow(ctx, `
		SELECT role FROM profiles WHERE id = $1
	`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", authz.ErrProfileNotFound
		}
		return "", fmt.Errorf("failed to get profile role: %w", err)
	}
	return role, nil
}
