package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/olayinkafad/plainly/internal/observe"
	"github.com/olayinkafad/plainly/pkg/provider/llm"
	"github.com/olayinkafad/plainly/pkg/provider/stt"
)

const (
	// DefaultRequestTimeout bounds each provider round-trip.
	DefaultRequestTimeout = 120 * time.Second

	// DefaultTemperature is the sampling temperature for generation calls.
	// Low, because structured extraction should be near-deterministic.
	DefaultTemperature = 0.2
)

// TranscribeResult is the outcome of the transcription stage.
type TranscribeResult struct {
	// TooShort is set when the audio payload was below the minimum size.
	// No provider call was made and the remaining fields are zero.
	TooShort bool

	// Text is the trimmed, validated transcript.
	Text string

	// DurationSec is the audio duration as reported by the provider.
	DurationSec float64

	// Segments are provider timestamp segments, present when requested.
	Segments []stt.Segment
}

// ProcessResult is the outcome of a full pipeline run.
type ProcessResult struct {
	TooShort   bool
	Transcript string
	Summary    StructuredSummary
	Structured StructuredTranscript
}

// Option is a functional option for configuring a [Processor].
type Option func(*Processor)

// WithMinAudioBytes overrides the minimum audio payload size.
func WithMinAudioBytes(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.minAudioBytes = n
		}
	}
}

// WithMinTranscriptChars overrides the minimum transcript length.
func WithMinTranscriptChars(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.minTranscriptChars = n
		}
	}
}

// WithMaxTranscriptChars overrides the transcript truncation limit.
func WithMaxTranscriptChars(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxTranscriptChars = n
		}
	}
}

// WithMinSegmentChars overrides the minimum segment text length kept during
// reconciliation.
func WithMinSegmentChars(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.minSegmentChars = n
		}
	}
}

// WithRequestTimeout overrides the per-provider-call timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.requestTimeout = d
		}
	}
}

// WithTemperature overrides the generation sampling temperature.
func WithTemperature(temp float64) Option {
	return func(p *Processor) {
		p.temperature = temp
	}
}

// WithMetrics sets the metrics instance used for stage instrumentation.
// Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// Processor runs the two-stage voice note pipeline. It is safe for
// concurrent use.
//
// Either provider may be nil when the server is started without the matching
// credential; calls needing that provider then fail with a [ClassConfig]
// error rather than at startup, so a partially configured server can still
// serve the operations it supports.
type Processor struct {
	stt stt.Provider
	llm llm.Provider

	metrics *observe.Metrics

	minAudioBytes      int
	minTranscriptChars int
	maxTranscriptChars int
	minSegmentChars    int
	requestTimeout     time.Duration
	temperature        float64
}

// New returns a [Processor] using the given providers and options.
func New(sttProvider stt.Provider, llmProvider llm.Provider, opts ...Option) *Processor {
	p := &Processor{
		stt:                sttProvider,
		llm:                llmProvider,
		metrics:            observe.DefaultMetrics(),
		minAudioBytes:      DefaultMinAudioBytes,
		minTranscriptChars: DefaultMinTranscriptChars,
		maxTranscriptChars: DefaultMaxTranscriptChars,
		minSegmentChars:    DefaultMinSegmentChars,
		requestTimeout:     DefaultRequestTimeout,
		temperature:        DefaultTemperature,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Transcribe runs the transcription stage on an audio payload.
//
// Payloads below the minimum size return a TooShort result without touching
// the provider. The returned transcript has already passed hallucination
// validation and truncation, so callers can hand it straight to generation.
func (p *Processor) Transcribe(ctx context.Context, audio []byte, filename, mimeType string, wantSegments bool) (*TranscribeResult, error) {
	if len(audio) < p.minAudioBytes {
		p.metrics.RecordOutcome(ctx, "too_short")
		return &TranscribeResult{TooShort: true}, nil
	}
	if p.stt == nil {
		return nil, newError(ClassConfig, "no transcription provider configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	start := time.Now()
	res, err := p.stt.Transcribe(ctx, stt.Request{
		Audio:        bytes.NewReader(audio),
		Filename:     filename,
		MIMEType:     mimeType,
		WantSegments: wantSegments,
	})
	p.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderRequest(ctx, "stt", "error")
		p.metrics.RecordProviderError(ctx, "stt")
		return nil, classifyProviderError(err)
	}
	p.metrics.RecordProviderRequest(ctx, "stt", "ok")

	text, verr := ValidateTranscript(res.Text, p.minTranscriptChars)
	if verr != nil {
		p.metrics.RecordOutcome(ctx, "no_speech")
		return nil, verr
	}
	text = TruncateTranscript(text, p.maxTranscriptChars)

	return &TranscribeResult{
		Text:        text,
		DurationSec: res.DurationSec,
		Segments:    res.Segments,
	}, nil
}

// GenerateOne runs one generation call for the given kind and returns the
// serialised artifact. The model response is parsed with schema defaults, so
// the returned JSON always matches the kind's full schema even when the
// model misbehaves. Provider and context errors are still returned.
func (p *Processor) GenerateOne(ctx context.Context, transcript string, segments []stt.Segment, kind Kind) (json.RawMessage, error) {
	if !kind.IsValid() {
		return nil, newError(ClassInvalidInput, "unknown output format "+string(kind), nil)
	}

	content, err := p.complete(ctx, promptFor(kind), transcript, kind)
	if err != nil {
		return nil, err
	}

	var artifact any
	switch kind {
	case KindSummary:
		artifact = normalizeSummary(parseOrDefault(content, defaultSummary(transcript)))
	case KindTranscript:
		st := parseOrDefault(content, defaultTranscript(transcript))
		segs, rerr := ReconcileSegments(st.Segments, segments, p.minSegmentChars)
		if rerr != nil {
			return nil, rerr
		}
		st.Segments = segs
		artifact = st
	case KindActionItems:
		a := parseOrDefault(content, ActionItemList{ActionItems: []string{}})
		if a.ActionItems == nil {
			a.ActionItems = []string{}
		}
		artifact = a
	case KindKeyPoints:
		k := parseOrDefault(content, KeyPointList{KeyPoints: []string{transcript}})
		if k.KeyPoints == nil {
			k.KeyPoints = []string{}
		}
		artifact = k
	}

	raw, err := json.Marshal(artifact)
	if err != nil {
		return nil, newError(ClassProvider, "encode artifact", err)
	}
	return raw, nil
}

// GenerateAll runs summary and transcript generation concurrently. Both must
// succeed; the first error cancels the sibling and fails the call.
func (p *Processor) GenerateAll(ctx context.Context, transcript string, segments []stt.Segment) (StructuredSummary, StructuredTranscript, error) {
	var (
		summary    StructuredSummary
		structured StructuredTranscript
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		content, err := p.complete(gctx, summaryPrompt, transcript, KindSummary)
		if err != nil {
			return err
		}
		summary = normalizeSummary(parseOrDefault(content, defaultSummary(transcript)))
		return nil
	})
	g.Go(func() error {
		content, err := p.complete(gctx, transcriptPrompt, transcript, KindTranscript)
		if err != nil {
			return err
		}
		st := parseOrDefault(content, defaultTranscript(transcript))
		segs, rerr := ReconcileSegments(st.Segments, segments, p.minSegmentChars)
		if rerr != nil {
			return rerr
		}
		st.Segments = segs
		structured = st
		return nil
	})

	if err := g.Wait(); err != nil {
		return StructuredSummary{}, StructuredTranscript{}, err
	}
	return summary, structured, nil
}

// Process runs the full pipeline: transcribe, validate, then generate both
// the summary and the structured transcript.
func (p *Processor) Process(ctx context.Context, audio []byte, filename, mimeType string) (*ProcessResult, error) {
	tr, err := p.Transcribe(ctx, audio, filename, mimeType, true)
	if err != nil {
		return nil, err
	}
	if tr.TooShort {
		return &ProcessResult{TooShort: true}, nil
	}

	summary, structured, err := p.GenerateAll(ctx, tr.Text, tr.Segments)
	if err != nil {
		return nil, err
	}

	p.metrics.RecordOutcome(ctx, "completed")
	return &ProcessResult{
		Transcript: tr.Text,
		Summary:    summary,
		Structured: structured,
	}, nil
}

// complete issues one LLM call with stage instrumentation and error
// classification.
func (p *Processor) complete(ctx context.Context, systemPrompt, userText string, kind Kind) (string, error) {
	if p.llm == nil {
		return "", newError(ClassConfig, "no language model provider configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  p.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: userText},
		},
	})
	p.metrics.GenerationDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("kind", string(kind))),
	)
	if err != nil {
		p.metrics.RecordProviderRequest(ctx, "llm", "error")
		p.metrics.RecordProviderError(ctx, "llm")
		return "", classifyProviderError(err)
	}
	p.metrics.RecordProviderRequest(ctx, "llm", "ok")

	return resp.Content, nil
}
