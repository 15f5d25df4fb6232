package recording

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Update when no recording with the given ID
// exists. Get returns (nil, nil) instead, matching the read/write asymmetry:
// reads tolerate absence, writes must not silently invent rows.
var ErrNotFound = errors.New("recording: not found")

// ErrInvalidTransition is returned by Update when a patch requests a status
// change the status machine forbids.
var ErrInvalidTransition = errors.New("recording: invalid status transition")

// Patch is a partial update. Nil fields are left untouched; non-nil fields
// overwrite. Status changes are validated against the status machine and
// keep the Outputs/ProcessingError invariants: entering completed clears the
// error, entering failed clears outputs, re-entering processing clears both.
type Patch struct {
	Title            *string
	Status           *Status
	ProcessingError  *string
	Outputs          *Outputs
	LastViewedFormat *string
}

// Store persists recordings.
type Store interface {
	// GetAll returns every recording, newest first.
	GetAll(ctx context.Context) ([]Recording, error)

	// Get returns the recording with the given ID, or (nil, nil) when absent.
	Get(ctx context.Context, id string) (*Recording, error)

	// Add inserts a new recording. The recording is validated first.
	Add(ctx context.Context, rec *Recording) error

	// Update applies a patch to an existing recording and returns the updated
	// value. Returns ErrNotFound when absent and ErrInvalidTransition when the
	// patch requests a forbidden status change.
	Update(ctx context.Context, id string, patch Patch) (*Recording, error)

	// Delete removes a recording. Deleting an absent ID is not an error.
	Delete(ctx context.Context, id string) error
}

// applyPatch mutates rec according to patch, enforcing the status machine.
// Both store implementations funnel writes through here so transition rules
// cannot drift between backends.
func applyPatch(rec *Recording, patch Patch) error {
	if patch.Status != nil {
		next := *patch.Status
		if !next.IsValid() {
			return fmt.Errorf("recording: invalid status %q", next)
		}
		if !rec.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, next)
		}
		rec.Status = next
		switch next {
		case StatusProcessing:
			rec.ProcessingError = ""
			rec.Outputs = nil
		case StatusCompleted:
			rec.ProcessingError = ""
		case StatusFailed:
			rec.Outputs = nil
		}
	}
	if patch.Title != nil {
		rec.Title = *patch.Title
	}
	if patch.ProcessingError != nil {
		rec.ProcessingError = *patch.ProcessingError
	}
	if patch.Outputs != nil {
		rec.Outputs = patch.Outputs
	}
	if patch.LastViewedFormat != nil {
		rec.LastViewedFormat = *patch.LastViewedFormat
	}
	return rec.Validate()
}
