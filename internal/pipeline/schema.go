package pipeline

import (
	"encoding/json"
	"strings"
)

// Kind selects the structured output shape requested from the generation
// stage.
type Kind string

const (
	KindSummary     Kind = "summary"
	KindTranscript  Kind = "transcript"
	KindActionItems Kind = "action_items"
	KindKeyPoints   Kind = "key_points"
)

// ValidKinds lists every supported generation kind in request-parameter form.
var ValidKinds = []Kind{KindSummary, KindTranscript, KindActionItems, KindKeyPoints}

// IsValid reports whether k is a known generation kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindSummary, KindTranscript, KindActionItems, KindKeyPoints:
		return true
	}
	return false
}

// ConfidenceNotes carries the model's self-reported caveats about the
// transcript it was given. All fields default to their zero values when the
// model omits them.
type ConfidenceNotes struct {
	PossibleMissedWords bool   `json:"possible_missed_words"`
	MixedLanguage       bool   `json:"mixed_language"`
	NoisyAudio          bool   `json:"noisy_audio"`
	Reason              string `json:"reason"`
}

// StructuredSummary is the summary output shape.
type StructuredSummary struct {
	Title           string          `json:"title"`
	Overview        string          `json:"overview"`
	KeyPoints       []string        `json:"key_points"`
	ActionItems     []string        `json:"action_items"`
	ConfidenceNotes ConfidenceNotes `json:"confidence_notes"`
}

// TranscriptSegment is a single reconciled segment of a structured
// transcript. StartSec and EndSec are pointers because the model may omit
// timestamps; reconciliation fills them in from provider segments when a
// match is found.
type TranscriptSegment struct {
	StartSec *float64 `json:"start_sec,omitempty"`
	EndSec   *float64 `json:"end_sec,omitempty"`
	Text     string   `json:"text"`
}

// StructuredTranscript is the transcript output shape.
type StructuredTranscript struct {
	Segments        []TranscriptSegment `json:"segments"`
	ConfidenceNotes ConfidenceNotes     `json:"confidence_notes"`
}

// ActionItemList is the action-items output shape.
type ActionItemList struct {
	ActionItems     []string        `json:"action_items"`
	ConfidenceNotes ConfidenceNotes `json:"confidence_notes"`
}

// KeyPointList is the key-points output shape.
type KeyPointList struct {
	KeyPoints       []string        `json:"key_points"`
	ConfidenceNotes ConfidenceNotes `json:"confidence_notes"`
}

// defaultSummary builds the schema-valid fallback summary used when the
// model's response cannot be parsed: the raw text becomes the overview and
// every list is empty rather than null.
func defaultSummary(transcript string) StructuredSummary {
	return StructuredSummary{
		Title:       "",
		Overview:    transcript,
		KeyPoints:   []string{},
		ActionItems: []string{},
	}
}

// defaultTranscript builds the fallback transcript: one unsegmented block
// holding the full text, no timestamps.
func defaultTranscript(transcript string) StructuredTranscript {
	return StructuredTranscript{
		Segments: []TranscriptSegment{{Text: transcript}},
	}
}

// parseOrDefault unmarshals a model response into T after stripping markdown
// fences. On any parse failure the provided fallback is returned instead —
// malformed model output must never propagate past this point.
func parseOrDefault[T any](content string, fallback T) T {
	cleaned := stripMarkdown(content)

	var v T
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return fallback
	}
	return v
}

// normalizeSummary replaces nil slices with empty ones so that serialised
// output always contains the full schema.
func normalizeSummary(s StructuredSummary) StructuredSummary {
	if s.KeyPoints == nil {
		s.KeyPoints = []string{}
	}
	if s.ActionItems == nil {
		s.ActionItems = []string{}
	}
	return s
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
