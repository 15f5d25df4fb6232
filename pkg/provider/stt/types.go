package stt

import "fmt"

// StatusError is returned when the transcription backend answers with a
// non-2xx HTTP status. Callers use the status code to classify the failure
// (401 → invalid credentials, 429 → quota exhausted, 5xx → transient).
type StatusError struct {
	// StatusCode is the HTTP status returned by the backend.
	StatusCode int

	// Body is a short excerpt of the response body, for diagnostics.
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("stt: backend returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("stt: backend returned HTTP %d: %s", e.StatusCode, e.Body)
}
