package recording

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory [Store] for development and tests. It is safe
// for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]Recording
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Recording)}
}

// GetAll returns every recording, newest first.
func (s *MemoryStore) GetAll(_ context.Context) ([]Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Recording, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, cloneRecording(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Get returns the recording with the given ID, or (nil, nil) when absent.
func (s *MemoryStore) Get(_ context.Context, id string) (*Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recs[id]
	if !ok {
		return nil, nil
	}
	out := cloneRecording(rec)
	return &out, nil
}

// Add inserts a new recording after validation. Returns an error if a
// recording with the same ID already exists.
func (s *MemoryStore) Add(_ context.Context, rec *Recording) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.recs[rec.ID]; exists {
		return fmt.Errorf("recording: recording with id %q already exists", rec.ID)
	}
	s.recs[rec.ID] = cloneRecording(*rec)
	return nil
}

// Update applies a patch to an existing recording.
func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) (*Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := applyPatch(&rec, patch); err != nil {
		return nil, err
	}
	s.recs[id] = cloneRecording(rec)

	out := cloneRecording(rec)
	return &out, nil
}

// Delete removes a recording. Absent IDs are ignored.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, id)
	return nil
}

// cloneRecording deep-copies a recording so callers cannot mutate stored
// state through shared pointers.
func cloneRecording(rec Recording) Recording {
	if rec.Outputs != nil {
		outputs := Outputs{
			Summary:    Artifact{Raw: append([]byte(nil), rec.Outputs.Summary.Raw...)},
			Transcript: Artifact{Raw: append([]byte(nil), rec.Outputs.Transcript.Raw...)},
		}
		rec.Outputs = &outputs
	}
	return rec
}
