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
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/coursely/coursely/internal/authz"
	"github.com/coursely/coursely/internal/profile"
)

const roleRequestColumns = `id, user_id, requested_role, reason, status, reviewed_by, created_at, reviewed_at`

// RoleRequestRepository implements profile.Repository
type RoleRequestRepository struct {
	db *DB
}

// NewRoleRequestRepository creates a new role request repository
func NewRoleRequestRepository(db *DB) *RoleRequestRepository {
	return &RoleRequestRepository{db: db}
}

// Create inserts a pending request, creating a bare profile first when the
// user has none yet.
func (r *RoleRequestRepository) Create(ctx context.Context, req *profile.RoleRequest) error {
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO profiles (id) VALUES ($1) ON CONFLICT (id) DO NOTHING
		`, req.UserID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO role_requests (id, user_id, requested_role, reason, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, req.ID, req.UserID, req.RequestedRole.String(), req.Reason, req.Status, req.CreatedAt)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return profile.ErrPendingExists
		}
		return fmt.Errorf("failed to create role request: %w", err)
	}
	return nil
}

// GetByID retrieves a request
func (r *RoleRequestRepository) GetByID(ctx context.Context, id string) (*profile.RoleRequest, error) {
	req, err := scanRoleRequest(r.db.pool.QueryRow(ctx, `
		SELECT `+roleRequestColumns+` FROM role_requests WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profile.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get role request: %w", err)
	}
	return req, nil
}

// HasPending reports whether userID has an open request
func (r *RoleRequestRepository) HasPending(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM role_requests WHERE user_id = $1 AND status = 'pending')
	`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending role request: %w", err)
	}
	return exists, nil
}

// ListPending lists open requests, oldest first
func (r *RoleRequestRepository) ListPending(ctx context.Context, limit, offset int) ([]*profile.RoleRequest, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+roleRequestColumns+`
		FROM role_requests
		WHERE status = 'pending'
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list role requests: %w", err)
	}
	defer rows.Close()

	var out []*profile.RoleRequest
	for rows.Next() {
		req, err := scanRoleRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Approve closes the request and writes the granted role to the profile in
// one transaction.
func (r *RoleRequestRepository) Approve(ctx context.Context, id, reviewerID string, at time.Time) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		var userID, role string
		err := tx.QueryRow(ctx, `
			UPDATE role_requests
			SET status = 'approved', reviewed_by = $2, reviewed_at = $3
			WHERE id = $1 AND status = 'pending'
			RETURNING user_id, requested_role
		`, id, reviewerID, at).Scan(&userID, &role)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return profile.ErrNotPending
			}
			return fmt.Errorf("failed to approve role request: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE profiles SET role = $2, updated_at = $3 WHERE id = $1
		`, userID, role, at)
		if err != nil {
			return fmt.Errorf("failed to update profile role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("failed to update profile role: %w", authz.ErrProfileNotFound)
		}
		return nil
	})
}

// Reject closes the request without a role change
func (r *RoleRequestRepository) Reject(ctx context.Context, id, reviewerID string, at time.Time) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE role_requests
		SET status = 'rejected', reviewed_by = $2, reviewed_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, reviewerID, at)
	if err != nil {
		return fmt.Errorf("failed to reject role request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrNotPending
	}
	return nil
}

func scanRoleRequest(row pgx.Row) (*profile.RoleRequest, error) {
	var (
		req  profile.RoleRequest
		role string
	)
	if err := row.Scan(&req.ID, &req.UserID, &role, &req.Reason, &req.Status, &req.ReviewedBy, &req.CreatedAt, &req.ReviewedAt); err != nil {
		return nil, err
	}
	req.RequestedRole = authz.Role(role)
	return &req, nil
}
