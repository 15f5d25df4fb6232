// Package whisper provides a batch STT provider backed by an
// OpenAI-compatible transcription endpoint (POST {base}/audio/transcriptions).
//
// The provider submits the full audio payload as multipart/form-data and
// parses the JSON response. When segment timestamps are requested it asks for
// the verbose response format, which carries per-segment start/end offsets in
// seconds.
//
// Usage:
//
//	p, err := whisper.New(apiKey,
//	    whisper.WithModel("whisper-1"),
//	    whisper.WithLanguage("en"),
//	)
//	res, err := p.Transcribe(ctx, stt.Request{Audio: f, Filename: "note.m4a", WantSegments: true})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/olayinkafad/plainly/pkg/provider/stt"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "whisper-1"

	// defaultTimeout bounds a single transcription round-trip. Long voice
	// notes can take a while to transcribe, so this is deliberately generous.
	defaultTimeout = 2 * time.Minute

	// maxErrorBodyBytes caps how much of an error response body is retained
	// for diagnostics.
	maxErrorBodyBytes = 512
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the default API base URL (e.g., to point at a
// self-hosted OpenAI-compatible server). The value must not end with a slash.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithModel sets the transcription model identifier. Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets a default BCP-47 language hint applied when the request
// does not carry one.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 2 minutes.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. Useful in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider against an OpenAI-compatible transcription
// endpoint. Safe for concurrent use.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider authenticated with apiKey. apiKey must be non-empty;
// the caller is expected to surface a configuration error to its own clients
// when no credential is available rather than constructing a Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("whisper: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// verboseResponse is the provider's verbose_json response shape. The plain
// json format is a strict subset, so one struct covers both.
type verboseResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe implements stt.Provider. It uploads the audio as
// multipart/form-data and decodes the JSON response. Non-2xx backend
// responses are returned as a [*stt.StatusError].
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if req.Audio == nil {
		return nil, errors.New("whisper: request audio must not be nil")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := createFormFile(mw, "file", req.Filename, req.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := io.Copy(fw, req.Audio); err != nil {
		return nil, fmt.Errorf("whisper: copy audio: %w", err)
	}

	if err := mw.WriteField("model", p.model); err != nil {
		return nil, fmt.Errorf("whisper: write model field: %w", err)
	}
	format := "json"
	if req.WantSegments {
		format = "verbose_json"
	}
	if err := mw.WriteField("response_format", format); err != nil {
		return nil, fmt.Errorf("whisper: write response_format field: %w", err)
	}
	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	if lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return nil, fmt.Errorf("whisper: write language field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := p.baseURL + "/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &stt.StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(excerpt)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	var vr verboseResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	result := &stt.Result{
		Text:        vr.Text,
		DurationSec: vr.Duration,
	}
	for _, s := range vr.Segments {
		result.Segments = append(result.Segments, stt.Segment{
			ID:    s.ID,
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}
	return result, nil
}

// createFormFile is like multipart.Writer.CreateFormFile but lets the part
// carry an explicit Content-Type when the caller knows the audio MIME type.
func createFormFile(mw *multipart.Writer, field, filename, mimeType string) (io.Writer, error) {
	if filename == "" {
		filename = "audio"
	}
	if mimeType == "" {
		return mw.CreateFormFile(field, filename)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(filename)))
	h.Set("Content-Type", mimeType)
	return mw.CreatePart(h)
}

// escapeQuotes mirrors the escaping multipart.Writer applies to file names.
func escapeQuotes(s string) string {
	r := strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
	return r.Replace(s)
}
