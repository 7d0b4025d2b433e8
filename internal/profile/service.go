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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coursely/coursely/internal/audit"
	"github.com/coursely/coursely/internal/authz"
)

// Service provides the role request workflow
type Service struct {
	repo        Repository
	auditLogger audit.Logger
	clock       func() time.Time
}

// NewService creates a new role request service
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		clock:       time.Now,
	}
}

// Request files a role request for userID
func (s *Service) Request(ctx context.Context, userID, role, reason string) (*RoleRequest, error) {
	if userID == "" {
		return nil, authz.ErrUnauthenticated
	}
	requested, ok := authz.ParseRole(role)
	if !ok {
		return nil, ErrInvalidRole
	}
	if requested == authz.RoleStudent {
		return nil, ErrStudentRole
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > MaxReasonLength {
		return nil, ErrReasonTooLong
	}

	pending, err := s.repo.HasPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending requests: %w", err)
	}
	if pending {
		return nil, ErrPendingExists
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate request id: %w", err)
	}
	req := &RoleRequest{
		ID:            id.String(),
		UserID:        userID,
		RequestedRole: requested,
		Reason:        reason,
		Status:        StatusPending,
		CreatedAt:     s.clock(),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create role request: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRequested,
		ActorID:  userID,
		Resource: req.ID,
		Metadata: map[string]any{"requested_role": requested.String()},
	})
	return req, nil
}

// ListPending lists requests awaiting review, oldest first
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*RoleRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListPending(ctx, limit, offset)
}

// Approve grants the requested role. The profile record becomes the new
// source of the user's role.
func (s *Service) Approve(ctx context.Context, id, reviewerID string) (*RoleRequest, error) {
	req, err := s.reviewable(ctx, id, reviewerID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if err := s.repo.Approve(ctx, id, reviewerID, now); err != nil {
		return nil, err
	}
	req.Status = StatusApproved
	req.ReviewedBy = &reviewerID
	req.ReviewedAt = &now

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRequestApproved,
		ActorID:  reviewerID,
		Resource: req.ID,
		Metadata: map[string]any{"user_id": req.UserID, "role": req.RequestedRole.String()},
	})
	return req, nil
}

// Reject declines the request
func (s *Service) Reject(ctx context.Context, id, reviewerID string) (*RoleRequest, error) {
	req, err := s.reviewable(ctx, id, reviewerID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if err := s.repo.Reject(ctx, id, reviewerID, now); err != nil {
		return nil, err
	}
	req.Status = StatusRejected
	req.ReviewedBy = &reviewerID
	req.ReviewedAt = &now

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRequestRejected,
		ActorID:  reviewerID,
		Resource: req.ID,
		Metadata: map[string]any{"user_id": req.UserID, "role": req.RequestedRole.String()},
	})
	return req, nil
}

func (s *Service) reviewable(ctx context.Context, id, reviewerID string) (*RoleRequest, error) {
	if reviewerID == "" {
		return nil, authz.ErrUnauthenticated
	}
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, ErrNotPending
	}
	if req.UserID == reviewerID {
		return nil, ErrSelfReview
	}
	return req, nil
}
