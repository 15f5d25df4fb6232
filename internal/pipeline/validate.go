package pipeline

import "strings"

// Default validation thresholds. All are overridable via [Option] values.
const (
	// DefaultMinAudioBytes is the smallest audio payload worth sending to a
	// transcription provider. Anything below is assumed to be silence or a
	// truncated capture.
	DefaultMinAudioBytes = 1000

	// DefaultMinTranscriptChars is the minimum trimmed transcript length
	// accepted as real speech.
	DefaultMinTranscriptChars = 2

	// DefaultMaxTranscriptChars caps the transcript length sent to the
	// generation stage. Longer transcripts are truncated with a marker.
	DefaultMaxTranscriptChars = 50000

	// DefaultMinSegmentChars is the minimum text length for a transcript
	// segment to survive reconciliation.
	DefaultMinSegmentChars = 3
)

// TooShortOutput is the output text returned for audio payloads below the
// minimum size. This is a successful (non-error) pipeline result.
const TooShortOutput = "Recording too short to process..."

// NoSpeechMessage is the user-facing message for transcripts rejected as
// containing no real speech.
const NoSpeechMessage = "No speech detected in recording"

// truncationMarker is appended to transcripts cut at the maximum length.
const truncationMarker = "... [truncated]"

// hallucinations lists phrases Whisper-family models emit on silent or noisy
// input. Matching is exact after trimming and lowercasing.
var hallucinations = map[string]struct{}{
	"you":                     {},
	"thank you.":              {},
	"thank you":               {},
	"thanks for watching":     {},
	"thanks for watching.":    {},
	"thank you for watching":  {},
	"thank you for watching.": {},
	"subscribe":               {},
	"please subscribe":        {},
	"bye.":                    {},
	".":                       {},
}

// ValidateTranscript trims the raw transcript and rejects it when it cannot
// contain real speech: empty, below the minimum length, or exactly matching a
// known hallucination phrase. On success the trimmed transcript is returned.
// On rejection the returned *Error has [ClassNoSpeech].
func ValidateTranscript(raw string, minChars int) (string, *Error) {
	text := strings.TrimSpace(raw)
	if text == "" || len([]rune(text)) < minChars {
		return "", newError(ClassNoSpeech, NoSpeechMessage, nil)
	}
	if _, ok := hallucinations[strings.ToLower(text)]; ok {
		return "", newError(ClassNoSpeech, NoSpeechMessage, nil)
	}
	return text, nil
}

// TruncateTranscript cuts text to at most maxChars runes, appending a marker
// when truncation happened. Text at or under the limit passes through
// unchanged.
func TruncateTranscript(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars]) + truncationMarker
}
