// Package cache provides an in-memory TTL response cache with per-key
// fetch coalescing and explicit invalidation. It is the primary consistency
// mechanism for the API client: mutating operations invalidate the entries
// they could have made stale, since the service pushes no invalidation.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

// Store is a keyed TTL cache safe for concurrent use. Expired entries are
// treated as absent and never returned.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (s *Store) get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().Sub(e.storedAt) >= e.ttl {
		return nil, false
	}
	return e.value, true
}

func (s *Store) set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic prune; the key space is small (one entry per API
	// operation per resource) so a full scan on write is cheap.
	now := s.now()
	for k, e := range s.entries {
		if now.Sub(e.storedAt) >= e.ttl {
			delete(s.entries, k)
		}
	}
	s.entries[key] = entry{value: value, storedAt: now, ttl: ttl}
}

// Invalidate removes the entry for key, if any.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// InvalidatePrefix removes every entry whose key starts with prefix and
// returns how many were removed.
func (s *Store) InvalidatePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Peek returns the cached value for key without fetching. It is used for
// local fail-fast checks that must not trigger a remote call.
func Peek[T any](s *Store, key string) (T, bool) {
	if v, ok := s.get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}

// GetOrFetch returns the cached value for key when fresh; otherwise it runs
// fetch, stores the result with the given TTL, and returns it. Concurrent
// callers for the same key share a single in-flight fetch.
func GetOrFetch[T any](ctx context.Context, s *Store, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := Peek[T](s, key); ok {
		return v, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// A caller that lost the race may enter after the winner has
		// already stored the value; serve it rather than refetching.
		if v, ok := s.get(key); ok {
			return v, nil
		}
		val, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.set(key, val, ttl)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
