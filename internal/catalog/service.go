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

package catalog

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Repository abstracts course persistence.
type Repository interface {
	// ListPublished returns published courses, newest first.
	ListPublished(ctx context.Context, limit, offset int) ([]*Course, error)

	// GetPublishedBySlug returns a published course or ErrCourseNotFound.
	GetPublishedBySlug(ctx context.Context, slug string) (*Course, error)
}

// ListOptions pages through the catalog.
type ListOptions struct {
	Limit  int
	Offset int
}

// Listing is a course together with its current price.
type Listing struct {
	Course *Course
	Price  PriceQuote
}

// Service serves the public course catalog.
type Service struct {
	repo  Repository
	clock func() time.Time
}

// NewService creates a catalog service
func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// List returns a page of published courses priced at the current time.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Listing, error) {
	limit, offset := opts.Limit, opts.Offset
	if offset < 0 {
		return nil, ErrInvalidListing
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	courses, err := s.repo.ListPublished(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	now := s.clock()
	out := make([]Listing, 0, len(courses))
	for _, c := range courses {
		out = append(out, Listing{Course: c, Price: Quote(*c, now)})
	}
	return out, nil
}

// Get returns one published course by slug.
func (s *Service) Get(ctx context.Context, slug string) (Listing, error) {
	if slug == "" {
		return Listing{}, ErrCourseNotFound
	}
	c, err := s.repo.GetPublishedBySlug(ctx, slug)
	if err != nil {
		return Listing{}, err
	}
	return Listing{Course: c, Price: Quote(*c, s.clock())}, nil
}
