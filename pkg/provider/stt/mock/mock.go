// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider in unit tests to feed controlled transcription results without
// a live backend and to verify what the pipeline submitted. All fields are
// safe to set before calling any method; mutating them during a concurrent
// call is the caller's responsibility.
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/olayinkafad/plainly/pkg/provider/stt"
)

// Call records a single invocation of Transcribe.
type Call struct {
	// Audio is the fully drained audio payload passed in the request.
	Audio []byte

	// Req is the request as received, with Audio set to nil (the reader is
	// consumed into the Audio field above).
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
// Zero values cause Transcribe to return an empty Result and nil error.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result *stt.Result

	// Err, if non-nil, is returned by Transcribe.
	Err error

	// Calls records every invocation of Transcribe in order.
	Calls []Call
}

// Transcribe records the call, drains the audio reader, and returns the
// configured Result and Err.
func (p *Provider) Transcribe(_ context.Context, req stt.Request) (*stt.Result, error) {
	var audio []byte
	if req.Audio != nil {
		audio, _ = io.ReadAll(req.Audio)
	}
	recorded := req
	recorded.Audio = nil

	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Audio: audio, Req: recorded})
	result := p.Result
	err := p.Err
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if result == nil {
		return &stt.Result{}, nil
	}
	out := *result
	return &out, nil
}

// CallCount returns the number of recorded Transcribe invocations. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
