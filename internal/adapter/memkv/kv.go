// Package memkv implements the kv port with an in-process TTL map.
// It backs single-process deployments where no networked store is wanted
// and serves as the always-available backend variant.
package memkv

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Store is an in-process key/value store with per-key TTL.
type Store struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time // for testing
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		items: make(map[string]entry),
		now:   time.Now,
	}
}

// Get retrieves the value stored under key. Expired entries are misses.
func (s *Store) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	s.mu.RLock()
	e, found := s.items[key]
	s.mu.RUnlock()

	if !found {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have
		// replaced the entry since we dropped the read lock.
		if cur, still := s.items[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key. A non-positive ttl means no expiry.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.items[key] = e
	s.mu.Unlock()
	return nil
}

// Delete removes the value stored under key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds; the store lives in-process.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close releases the store contents.
func (s *Store) Close() error {
	s.mu.Lock()
	s.items = make(map[string]entry)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, counting expired ones that
// have not been swept yet.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
