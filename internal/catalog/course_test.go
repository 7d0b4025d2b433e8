package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name       string
		course     Course
		wantFinal  int64
		wantSaving int64
		wantActive bool
	}{
		{"no discount", Course{PriceMinor: 4999}, 4999, 0, false},
		{"open ended discount", Course{PriceMinor: 10000, DiscountPercent: 25}, 7500, 2500, true},
		{"discount before end", Course{PriceMinor: 10000, DiscountPercent: 10, DiscountEndsAt: &future}, 9000, 1000, true},
		{"expired discount", Course{PriceMinor: 10000, DiscountPercent: 10, DiscountEndsAt: &past}, 10000, 0, false},
		{"ends exactly now", Course{PriceMinor: 10000, DiscountPercent: 10, DiscountEndsAt: &now}, 10000, 0, false},
		{"round half up", Course{PriceMinor: 1999, DiscountPercent: 50}, 1000, 999, true},
		{"round down", Course{PriceMinor: 999, DiscountPercent: 33}, 669, 330, true},
		{"over 100 clamps", Course{PriceMinor: 5000, DiscountPercent: 150}, 0, 5000, true},
		{"negative clamps", Course{PriceMinor: 5000, DiscountPercent: -20}, 5000, 0, false},
		{"free course never discounted", Course{PriceMinor: 0, DiscountPercent: 50}, 0, 0, false},
		{"negative price treated as free", Course{PriceMinor: -10, DiscountPercent: 50}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Quote(tt.course, now)
			assert.Equal(t, tt.wantFinal, q.FinalMinor)
			assert.Equal(t, tt.wantSaving, q.SavingsMinor)
			assert.Equal(t, tt.wantActive, q.DiscountActive)
			assert.Equal(t, q.OriginalMinor, q.FinalMinor+q.SavingsMinor)
		})
	}
}

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) ListPublished(ctx context.Context, limit, offset int) ([]*Course, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Course), args.Error(1)
}

func (m *mockRepo) GetPublishedBySlug(ctx context.Context, slug string) (*Course, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Course), args.Error(1)
}

func TestService_List(t *testing.T) {
	repo := new(mockRepo)
	svc := NewService(repo)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	repo.On("ListPublished", mock.Anything, MaxPageSize, 0).Return([]*Course{
		{ID: "c1", Slug: "go-101", PriceMinor: 2000, DiscountPercent: 50, Currency: "USD"},
	}, nil)

	listings, err := svc.List(context.Background(), ListOptions{Limit: 1000})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, int64(1000), listings[0].Price.FinalMinor)
	assert.Equal(t, "USD", listings[0].Price.Currency)
	repo.AssertExpectations(t)
}

func TestService_List_Defaults(t *testing.T) {
	repo := new(mockRepo)
	svc := NewService(repo)

	repo.On("ListPublished", mock.Anything, DefaultPageSize, 40).Return([]*Course{}, nil)
	_, err := svc.List(context.Background(), ListOptions{Offset: 40})
	require.NoError(t, err)

	_, err = svc.List(context.Background(), ListOptions{Limit: 10, Offset: -1})
	assert.ErrorIs(t, err, ErrInvalidListing)

	repo.On("ListPublished", mock.Anything, 5, 0).Return(nil, errors.New("db down"))
	_, err = svc.List(context.Background(), ListOptions{Limit: 5})
	assert.Error(t, err)
}

func TestService_Get(t *testing.T) {
	repo := new(mockRepo)
	svc := NewService(repo)

	repo.On("GetPublishedBySlug", mock.Anything, "missing").Return(nil, ErrCourseNotFound)
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCourseNotFound)

	_, err = svc.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrCourseNotFound)
}
