package session

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often Revoke scans for expired entries.
const sweepInterval = time.Minute

// MemoryRevocationStore keeps revocations in process memory. It is meant for
// single-instance development deployments and tests.
type MemoryRevocationStore struct {
	mu        sync.Mutex
	revoked   map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.revoked[sessionID]
	if !ok {
		return false, nil
	}
	if s.now().After(until) {
		delete(s.revoked, sessionID)
		return false, nil
	}
	return true, nil
}

// Revoke records sessionID as revoked until the given time. Entries that have
// already expired are dropped on the way in, and the map is swept of stale
// entries at most once per sweepInterval.
func (s *MemoryRevocationStore) Revoke(_ context.Context, sessionID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweep(now)
	}
	if !until.After(now) {
		return nil
	}
	s.revoked[sessionID] = until
	return nil
}

// sweep must be called with mu held.
func (s *MemoryRevocationStore) sweep(now time.Time) {
	for id, until := range s.revoked {
		if now.After(until) {
			delete(s.revoked, id)
		}
	}
	s.lastSweep = now
}

func (s *MemoryRevocationStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.revoked)
}
