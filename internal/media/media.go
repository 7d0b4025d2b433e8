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

// Package media issues short-lived signed URLs for protected lesson media.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursely/coursely/internal/audit"
	"github.com/coursely/coursely/internal/authz"
	"github.com/coursely/coursely/internal/identity"
	"github.com/coursely/coursely/internal/observability/logger"
	"github.com/coursely/coursely/internal/observability/metrics"
)

// DefaultURLTTL is the lifetime of an issued URL when none is configured.
const DefaultURLTTL = time.Hour

var (
	// ErrForbidden is returned for any lesson the caller cannot read,
	// including lessons that do not exist.
	ErrForbidden = errors.New("media access denied")

	// ErrNoAccess is returned by an AccessReader when the scoped read yields nothing.
	ErrNoAccess = errors.New("lesson not readable")
)

// Lesson is the subset of a lesson needed to sign its media.
type Lesson struct {
	ID        string
	CourseID  string
	ObjectKey string
	Preview   bool
}

// SignedURL is a time-limited link to a media object.
type SignedURL struct {
	LessonID  string
	URL       string
	ExpiresAt time.Time
}

// AccessReader performs the scoped lesson read. It succeeds only for preview
// lessons, enrolled students, the course teacher, moderators and admins.
type AccessReader interface {
	ReadLessonMedia(ctx context.Context, userID string, role authz.Role, lessonID string) (Lesson, error)
}

// Signer produces a signed URL for an object key.
type Signer interface {
	Presign(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// Service gates signing behind the scoped read.
type Service struct {
	reader      AccessReader
	signer      Signer
	ttl         time.Duration
	auditLogger audit.Logger
	metrics     *metrics.AccessMetrics
	clock       func() time.Time
}

// NewService creates a media service.
func NewService(reader AccessReader, signer Signer, ttl time.Duration, auditLogger audit.Logger, m *metrics.AccessMetrics) *Service {
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Service{
		reader:      reader,
		signer:      signer,
		ttl:         ttl,
		auditLogger: auditLogger,
		metrics:     m,
		clock:       time.Now,
	}
}

// SignedURL returns a signed URL for lessonID's media. The signer is never
// called unless the scoped read succeeded.
func (s *Service) SignedURL(ctx context.Context, p *identity.Principal, role authz.Role, lessonID string) (SignedURL, error) {
	if p == nil {
		return SignedURL{}, authz.ErrUnauthenticated
	}
	if lessonID == "" {
		return SignedURL{}, s.deny(ctx, p, lessonID, "empty_lesson_id", nil)
	}

	lesson, err := s.reader.ReadLessonMedia(ctx, p.ID, role, lessonID)
	switch {
	case errors.Is(err, ErrNoAccess):
		return SignedURL{}, s.deny(ctx, p, lessonID, "no_access", nil)
	case err != nil:
		return SignedURL{}, s.deny(ctx, p, lessonID, "store_error", err)
	case lesson.ObjectKey == "":
		return SignedURL{}, s.deny(ctx, p, lessonID, "no_media", nil)
	}

	issuedAt := s.clock()
	url, err := s.signer.Presign(ctx, lesson.ObjectKey, s.ttl)
	if err != nil {
		return SignedURL{}, fmt.Errorf("failed to sign media url: %w", err)
	}

	s.metrics.MediaURLIssued(ctx)
	slog.DebugContext(ctx, "lesson media url issued",
		logger.Component("media"),
		logger.UserID(p.ID),
		logger.CourseID(lesson.CourseID),
		logger.LessonID(lesson.ID),
	)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMediaURLIssued,
		ActorID:  p.ID,
		Resource: lesson.ID,
		Metadata: map[string]any{
			"course_id": lesson.CourseID,
			"role":      role.String(),
			"ttl":       s.ttl.String(),
		},
	})

	return SignedURL{
		LessonID:  lesson.ID,
		URL:       url,
		ExpiresAt: issuedAt.Add(s.ttl),
	}, nil
}

func (s *Service) deny(ctx context.Context, p *identity.Principal, lessonID, reason string, err error) error {
	s.metrics.MediaDenied(ctx)

	attrs := []any{
		logger.Component("media"),
		logger.UserID(p.ID),
		logger.LessonID(lessonID),
		logger.Reason(reason),
	}
	if err != nil {
		slog.ErrorContext(ctx, "lesson media read failed", append(attrs, logger.Error(err))...)
	} else {
		slog.InfoContext(ctx, "lesson media access denied", attrs...)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMediaAccessDenied,
		ActorID:  p.ID,
		Resource: lessonID,
		Metadata: map[string]any{"reason": reason},
	})
	return ErrForbidden
}
