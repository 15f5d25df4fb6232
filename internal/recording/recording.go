// Package recording defines the voice note recording model and its
// persistence interface, with in-memory and PostgreSQL implementations.
//
// A recording moves through a small status machine: it is created as
// processing, then transitions to completed (with generated outputs) or
// failed (with an error message). A failed recording may re-enter processing
// when retried. The stores enforce these transitions; callers never write a
// status the machine does not allow.
package recording

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the processing state of a recording.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status machine allows moving from s to
// next. Allowed: processing→completed, processing→failed, failed→processing.
// Transitioning to the current status is a no-op and always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	case StatusFailed:
		return next == StatusProcessing
	}
	return false
}

// Artifact is one generated output attached to a completed recording. Its
// payload is raw JSON: either a structured object produced by the pipeline or
// a bare JSON string for plain-text values such as the too-short placeholder.
type Artifact struct {
	Raw json.RawMessage
}

// TextArtifact wraps a plain string as an artifact.
func TextArtifact(s string) Artifact {
	raw, _ := json.Marshal(s)
	return Artifact{Raw: raw}
}

// ParseArtifact interprets stored bytes as an artifact: valid JSON is kept
// verbatim, anything else is wrapped as a JSON string. Legacy rows stored
// outputs as plain text, so a non-JSON payload is data, not corruption.
func ParseArtifact(data []byte) Artifact {
	if json.Valid(data) {
		return Artifact{Raw: append(json.RawMessage(nil), data...)}
	}
	raw, _ := json.Marshal(string(data))
	return Artifact{Raw: raw}
}

// IsZero reports whether the artifact carries no payload.
func (a Artifact) IsZero() bool { return len(a.Raw) == 0 }

// AsString returns the decoded value and true when the artifact is a bare
// JSON string.
func (a Artifact) AsString() (string, bool) {
	var s string
	if err := json.Unmarshal(a.Raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// MarshalJSON writes the raw payload verbatim, or null when empty.
func (a Artifact) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	return a.Raw, nil
}

// UnmarshalJSON keeps the payload verbatim.
func (a *Artifact) UnmarshalJSON(data []byte) error {
	a.Raw = append(a.Raw[:0], data...)
	return nil
}

// Outputs are the generated artifacts of a completed recording.
type Outputs struct {
	Summary    Artifact `json:"summary"`
	Transcript Artifact `json:"transcript"`
}

// Recording is a single captured voice note and its processing state.
type Recording struct {
	// ID is assigned at creation and immutable.
	ID string `json:"id"`

	// Title is mutable: set by rename or by background title generation.
	Title string `json:"title"`

	// AudioBlobURL references the stored audio; immutable after creation and
	// used as the source for retries.
	AudioBlobURL string `json:"audioBlobUrl"`

	// DurationSec is the audio duration captured at creation.
	DurationSec float64 `json:"durationSec"`

	CreatedAt time.Time `json:"createdAt"`

	Status Status `json:"status"`

	// ProcessingError is set only while Status is failed.
	ProcessingError string `json:"processingError,omitempty"`

	// Outputs is set only while Status is completed.
	Outputs *Outputs `json:"outputs,omitempty"`

	// LastViewedFormat remembers which output the user looked at last. Pure
	// UI hint.
	LastViewedFormat string `json:"lastViewedFormat,omitempty"`
}

// Validate checks the invariants a recording must satisfy before being
// persisted.
func (r *Recording) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("recording: missing id")
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("recording: invalid status %q", r.Status)
	}
	if r.Outputs != nil && r.Status != StatusCompleted {
		return fmt.Errorf("recording: outputs present on %s recording", r.Status)
	}
	if r.ProcessingError != "" && r.Status != StatusFailed {
		return fmt.Errorf("recording: processing error present on %s recording", r.Status)
	}
	return nil
}
