package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is an in-memory implementation of the Store interface.
// Expired keys are dropped lazily on read.
type MemoryStore struct {
	data map[string]memoryEntry
	mu   sync.RWMutex
	now  func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.Store {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an in-memory store reading time from now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  now,
	}
}

// Set stores value under key. A non-positive ttl never expires.
func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.data[key] = entry
	return nil
}

// Get retrieves a value by key
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	entry, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return "", core.ErrNotFound
	}

	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		// Only delete if nobody replaced it meanwhile
		if current, exists := s.data[key]; exists && current == entry {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return "", core.ErrNotFound
	}

	return entry.value, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}
