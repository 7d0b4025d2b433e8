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
	"errors"
	"time"
)

// Domain errors
var (
	ErrCourseNotFound = errors.New("course not found")
	ErrInvalidListing = errors.New("invalid listing request")
)

// Course is a sellable course listing. Amounts are integer minor units.
type Course struct {
	ID              string
	Slug            string
	Title           string
	Summary         string
	TeacherID       string
	Currency        string
	PriceMinor      int64
	DiscountPercent int
	DiscountEndsAt  *time.Time
	Published       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PriceQuote is the price shown for a course at a point in time.
type PriceQuote struct {
	Currency        string
	OriginalMinor   int64
	FinalMinor      int64
	SavingsMinor    int64
	DiscountPercent int
	DiscountActive  bool
	DiscountEndsAt  *time.Time
}

// Quote prices c as of now.
func Quote(c Course, now time.Time) PriceQuote {
	original := c.PriceMinor
	if original < 0 {
		original = 0
	}
	q := PriceQuote{
		Currency:      c.Currency,
		OriginalMinor: original,
		FinalMinor:    original,
	}

	percent := clampPercent(c.DiscountPercent)
	if !discountActive(original, percent, c.DiscountEndsAt, now) {
		return q
	}

	q.FinalMinor = applyDiscount(original, percent)
	q.SavingsMinor = original - q.FinalMinor
	q.DiscountPercent = percent
	q.DiscountActive = true
	q.DiscountEndsAt = c.DiscountEndsAt
	return q
}

func discountActive(original int64, percent int, endsAt *time.Time, now time.Time) bool {
	if original == 0 || percent == 0 {
		return false
	}
	return endsAt == nil || now.Before(*endsAt)
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// applyDiscount returns original*(100-percent)/100 rounded half up.
func applyDiscount(original int64, percent int) int64 {
	scaled := original * int64(100-percent)
	final := scaled / 100
	if scaled%100 >= 50 {
		final++
	}
	return final
}
