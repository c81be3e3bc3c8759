// Package dedup provides the reserve-once store backing per-key detection
// de-duplication. A key is reserved at most once per TTL; later reservations
// within the TTL report false.
package dedup

import (
	"context"
	"sync"
	"time"
)

// Store is the minimal contract the coordinator needs for de-duplication.
type Store interface {
	// Reserve claims key for ttl. It returns true when this caller made the
	// reservation, false when the key is already held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Close() error
}

// MemoryStore is the in-process default. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory reservation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Reserve claims the key unless a live reservation exists. Expired entries
// are reclaimed lazily.
func (s *MemoryStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expires, ok := s.entries[key]; ok {
		if expires.IsZero() || now.Before(expires) {
			return false, nil
		}
		delete(s.entries, key)
	}

	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}
	s.entries[key] = expires
	return true, nil
}

// Close releases all reservations.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]time.Time)
	return nil
}
