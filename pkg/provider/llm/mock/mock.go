// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify the prompts the pipeline sends and to
// feed controlled responses without a live LLM backend.
//
// Example:
//
//	p := &mock.Provider{
//	    Responses: []string{`{"title": "Groceries"}`},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/olayinkafad/plainly/pkg/provider/llm"
)

// Call records a single invocation of Complete.
type Call struct {
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
//
// Responses are consumed in order, one per Complete call; when the slice is
// exhausted the last entry is repeated. Set Err to make every call fail, or
// RespondFunc to compute the reply from the request.
type Provider struct {
	mu sync.Mutex

	// Responses is the sequence of reply contents returned by Complete.
	Responses []string

	// RespondFunc, if set, overrides Responses: it receives the request and
	// returns the reply content.
	RespondFunc func(req llm.CompletionRequest) string

	// Err, if non-nil, is returned by every Complete call.
	Err error

	// Calls records every invocation of Complete in order.
	Calls []Call

	next int
}

// Complete records the call and returns the next configured response.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, Call{Req: req})

	if p.Err != nil {
		return nil, p.Err
	}

	var content string
	switch {
	case p.RespondFunc != nil:
		content = p.RespondFunc(req)
	case len(p.Responses) > 0:
		idx := p.next
		if idx >= len(p.Responses) {
			idx = len(p.Responses) - 1
		}
		content = p.Responses[idx]
		p.next++
	}

	return &llm.CompletionResponse{Content: content}, nil
}

// CallCount returns the number of recorded Complete invocations. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls and rewinds the response sequence. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
	p.next = 0
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
