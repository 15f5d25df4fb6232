// Package pipeline implements the two-stage voice note processing pipeline:
// speech-to-text transcription followed by structured output generation.
//
// The pipeline validates audio and transcripts before spending provider
// calls, classifies provider failures into a small error taxonomy, and
// degrades gracefully when the model returns something other than the
// requested JSON shape.
package pipeline

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/olayinkafad/plainly/pkg/provider/llm"
	"github.com/olayinkafad/plainly/pkg/provider/stt"
)

// Class identifies the category of a pipeline failure. The HTTP layer maps
// each class to a status code; the orchestrator uses it to decide what to
// persist on a failed recording.
type Class string

const (
	// ClassInvalidInput covers malformed or unusable caller input, such as
	// an unreadable audio payload or an empty transcript submitted for
	// generation.
	ClassInvalidInput Class = "invalid_input"

	// ClassNoSpeech marks a transcript rejected as containing no real
	// speech (empty, too short, or a known silence hallucination).
	ClassNoSpeech Class = "no_speech"

	// ClassAuth marks a provider rejection due to bad or missing credentials.
	ClassAuth Class = "auth"

	// ClassRateLimited marks a provider 429 response.
	ClassRateLimited Class = "rate_limited"

	// ClassProvider covers all other provider-side failures (5xx, network,
	// malformed provider responses).
	ClassProvider Class = "provider"

	// ClassConfig marks failures caused by server misconfiguration, such as
	// a pipeline constructed without a required provider.
	ClassConfig Class = "config"
)

// Error is the pipeline's error type. Every error that escapes a pipeline
// operation is an *Error so that callers can branch on Class without string
// matching.
type Error struct {
	Class   Class
	Message string // user-facing message, safe to return to clients
	Err     error  // underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pipeline: %s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("pipeline: %s: %s", e.Class, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error class to an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Class {
	case ClassInvalidInput, ClassNoSpeech:
		return http.StatusBadRequest
	case ClassAuth:
		return http.StatusUnauthorized
	case ClassRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// newError constructs an *Error with the given class and message.
func newError(class Class, msg string, cause error) *Error {
	return &Error{Class: class, Message: msg, Err: cause}
}

// ClassOf returns the Class of err if it is (or wraps) a pipeline *Error,
// and ClassProvider otherwise.
func ClassOf(err error) Class {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Class
	}
	return ClassProvider
}

// classifyProviderError converts a raw provider error into a pipeline *Error.
// HTTP status errors from either provider kind map 401/403 to auth and 429
// to rate-limited; everything else becomes a generic provider error.
func classifyProviderError(err error) *Error {
	var status int
	var se *stt.StatusError
	var le *llm.StatusError
	switch {
	case errors.As(err, &se):
		status = se.StatusCode
	case errors.As(err, &le):
		status = le.StatusCode
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return newError(ClassAuth, "provider rejected credentials", err)
	case http.StatusTooManyRequests:
		return newError(ClassRateLimited, "provider rate limit exceeded", err)
	}
	return newError(ClassProvider, "provider request failed", err)
}
