package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/olayinkafad/plainly/pkg/provider/llm"
)

// PlaceholderTitle is used whenever title generation cannot produce a usable
// result.
const PlaceholderTitle = "New Recording"

// maxTitleChars caps generated titles; anything longer is cut at a word
// boundary where possible.
const maxTitleChars = 80

// GenerateTitle asks the model for a short title based on the transcript
// and/or summary text. It never fails: any provider error, empty response,
// or missing provider yields [PlaceholderTitle].
func (p *Processor) GenerateTitle(ctx context.Context, transcript, summary string) string {
	source := strings.TrimSpace(transcript)
	if source == "" {
		source = strings.TrimSpace(summary)
	}
	if source == "" || p.llm == nil {
		return PlaceholderTitle
	}

	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: titlePrompt,
		Temperature:  p.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: source},
		},
	})
	p.metrics.TitleDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, "llm")
		return PlaceholderTitle
	}
	p.metrics.RecordProviderRequest(ctx, "llm", "ok")

	return CleanTitle(resp.Content)
}

// CleanTitle normalises a model-proposed title: trims whitespace and wrapping
// quotes, collapses it to a single line, caps its length, and falls back to
// the placeholder when nothing usable remains.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	title = strings.Trim(title, `"'`)
	title = strings.TrimSpace(title)
	if title == "" {
		return PlaceholderTitle
	}

	runes := []rune(title)
	if len(runes) > maxTitleChars {
		cut := string(runes[:maxTitleChars])
		if i := strings.LastIndexByte(cut, ' '); i > 0 {
			cut = cut[:i]
		}
		title = strings.TrimSpace(cut)
	}
	return title
}
