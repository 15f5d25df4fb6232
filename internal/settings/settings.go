// Package settings provides a small string-keyed preference store used for
// client UI state that must survive restarts: onboarding flags, milestone
// banners, and the fresh-start marker set when the library empties out.
package settings

import (
	"context"
	"fmt"
	"sync"
)

// KeyFreshStart is set to "true" when the last recording is deleted, so the
// client can show the first-run experience again.
const KeyFreshStart = "fresh_start"

// MilestoneKey returns the settings key marking the n-recordings milestone
// banner as seen.
func MilestoneKey(n int) string {
	return fmt.Sprintf("milestone_%d_seen", n)
}

// Store persists settings values by key.
type Store interface {
	// Get returns the value for key, or ("", nil) when unset.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// MarkSeen sets key to "true". Idempotent.
	MarkSeen(ctx context.Context, key string) error

	// Seen reports whether key has been marked seen.
	Seen(ctx context.Context, key string) (bool, error)
}

// MemoryStore is an in-memory [Store] for development and tests. It is safe
// for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) MarkSeen(ctx context.Context, key string) error {
	return s.Set(ctx, key, "true")
}

func (s *MemoryStore) Seen(ctx context.Context, key string) (bool, error) {
	v, err := s.Get(ctx, key)
	return v == "true", err
}
