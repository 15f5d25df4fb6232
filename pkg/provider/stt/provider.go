// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a remote transcription API (e.g., an OpenAI-compatible
// Whisper endpoint) and exposes a uniform batch interface so the processing
// pipeline never couples to a specific vendor's request or response shapes.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly: when ctx is cancelled, Transcribe must return as
// quickly as possible.
package stt

import (
	"context"
	"io"
)

// Request carries a complete audio payload for batch transcription.
type Request struct {
	// Audio is the raw audio content. The reader is consumed exactly once.
	Audio io.Reader

	// Filename is the original file name of the upload (e.g., "recording.m4a").
	// Providers forward it as the multipart file name so the backend can infer
	// the container format.
	Filename string

	// MIMEType is the content type of the audio payload. May be empty, in
	// which case the provider lets the backend sniff the format.
	MIMEType string

	// Language is an optional BCP-47 language hint (e.g., "en"). Empty means
	// the backend auto-detects.
	Language string

	// WantSegments requests per-segment start/end timestamps in the result.
	// Providers that cannot produce timestamps return a text-only Result.
	WantSegments bool
}

// Segment is a timed slice of the transcription, as reported by the provider.
type Segment struct {
	// ID is the provider-assigned ordinal of this segment.
	ID int

	// Start is the segment start offset in seconds from the beginning of the audio.
	Start float64

	// End is the segment end offset in seconds.
	End float64

	// Text is the transcribed speech within this segment.
	Text string
}

// Result is the outcome of a successful transcription request.
type Result struct {
	// Text is the full transcribed speech content.
	Text string

	// DurationSec is the audio duration in seconds as measured by the
	// provider. Zero when the provider does not report it.
	DurationSec float64

	// Segments contains timed segments when Request.WantSegments was set and
	// the provider supports them. Nil otherwise.
	Segments []Segment
}

// Provider is the abstraction over any batch speech-to-text backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Transcribe submits the audio in req and waits for the full transcription.
	//
	// Provider-reported HTTP failures are returned as a [*StatusError] so
	// callers can distinguish authentication and quota failures from
	// transient ones. All other errors indicate transport or decoding
	// problems.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
