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

package profile

import (
	"context"
	"errors"
	"time"

	"github.com/coursely/coursely/internal/authz"
)

// Status constants
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// MaxReasonLength bounds the free-text justification on a request.
const MaxReasonLength = 1000

// Domain errors
var (
	ErrInvalidRole     = errors.New("invalid role")
	ErrStudentRole     = errors.New("student is the default role and cannot be requested")
	ErrReasonTooLong   = errors.New("reason too long")
	ErrPendingExists   = errors.New("a pending role request already exists")
	ErrRequestNotFound = errors.New("role request not found")
	ErrNotPending      = errors.New("role request is not pending")
	ErrSelfReview      = errors.New("reviewers cannot decide their own request")
)

// RoleRequest asks an admin to raise a user's profile role.
type RoleRequest struct {
	ID            string
	UserID        string
	RequestedRole authz.Role
	Reason        string
	Status        string
	ReviewedBy    *string
	CreatedAt     time.Time
	ReviewedAt    *time.Time
}

// Repository persists role requests. Approve must update the request and the
// user's profile role atomically.
type Repository interface {
	Create(ctx context.Context, req *RoleRequest) error
	GetByID(ctx context.Context, id string) (*RoleRequest, error)
	HasPending(ctx context.Context, userID string) (bool, error)
	ListPending(ctx context.Context, limit, offset int) ([]*RoleRequest, error)
	Approve(ctx context.Context, id, reviewerID string, at time.Time) error
	Reject(ctx context.Context, id, reviewerID string, at time.Time) error
}
