package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/olayinkafad/plainly/internal/observe"
	"github.com/olayinkafad/plainly/internal/orchestrator"
	"github.com/olayinkafad/plainly/internal/pipeline"
	"github.com/olayinkafad/plainly/internal/recording"
)

// writeJSON serialises v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the common error body.
type errorResponse struct {
	Error string `json:"error"`
}

// processErrorResponse is the error body for the capture endpoints, which
// always carry the transcript/output pair even on failure.
type processErrorResponse struct {
	Error      string `json:"error"`
	Transcript string `json:"transcript"`
	Output     string `json:"output"`
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var pe *pipeline.Error
	switch {
	case errors.As(err, &pe):
		return pe.HTTPStatus()
	case errors.Is(err, recording.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, recording.ErrInvalidTransition),
		errors.Is(err, orchestrator.ErrAlreadyProcessing),
		errors.Is(err, orchestrator.ErrNotRetryable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// messageFor extracts the client-safe message from an error. Internal errors
// are not leaked verbatim.
func messageFor(err error) string {
	var pe *pipeline.Error
	switch {
	case errors.As(err, &pe):
		return pe.Message
	case errors.Is(err, recording.ErrNotFound):
		return "recording not found"
	case errors.Is(err, recording.ErrInvalidTransition):
		return "recording is not in a state that allows this change"
	case errors.Is(err, orchestrator.ErrAlreadyProcessing):
		return "recording is already being processed"
	case errors.Is(err, orchestrator.ErrNotRetryable):
		return "only failed recordings can be retried"
	default:
		return "internal server error"
	}
}

// writeError responds with the standard {error} body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: messageFor(err)})
}

// writeProcessError responds with the capture-endpoint error body, which
// includes empty transcript and output fields alongside the message.
func writeProcessError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed", "error", err)
	}
	writeJSON(w, status, processErrorResponse{Error: messageFor(err)})
}
