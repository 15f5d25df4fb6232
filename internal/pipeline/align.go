package pipeline

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/olayinkafad/plainly/pkg/provider/stt"
)

// jaroWinklerThreshold is the minimum similarity for a fuzzy text match
// between a model segment and a provider segment.
const jaroWinklerThreshold = 0.85

// ReconcileSegments fills in missing timestamps on model-proposed segments
// using provider-supplied timestamp segments, then drops segments whose text
// is shorter than minChars. Matching is a normalised prefix comparison with a
// Jaro-Winkler fallback, each provider segment used at most once.
//
// Returns a [ClassNoSpeech] error when no segment survives.
func ReconcileSegments(model []TranscriptSegment, provider []stt.Segment, minChars int) ([]TranscriptSegment, *Error) {
	used := make([]bool, len(provider))

	out := make([]TranscriptSegment, 0, len(model))
	for _, seg := range model {
		text := strings.TrimSpace(seg.Text)
		if len([]rune(text)) < minChars {
			continue
		}
		seg.Text = text

		if seg.StartSec == nil || seg.EndSec == nil {
			if idx := matchProviderSegment(text, provider, used); idx >= 0 {
				used[idx] = true
				start, end := provider[idx].Start, provider[idx].End
				if seg.StartSec == nil {
					seg.StartSec = &start
				}
				if seg.EndSec == nil {
					seg.EndSec = &end
				}
			}
		}
		out = append(out, seg)
	}

	if len(out) == 0 {
		return nil, newError(ClassNoSpeech, NoSpeechMessage, nil)
	}
	return out, nil
}

// matchProviderSegment finds the first unused provider segment whose text
// matches the given text, by prefix in either direction or by Jaro-Winkler
// similarity above the threshold. Returns -1 when nothing matches.
func matchProviderSegment(text string, provider []stt.Segment, used []bool) int {
	norm := normalizeForMatch(text)
	if norm == "" {
		return -1
	}

	for i, ps := range provider {
		if used[i] {
			continue
		}
		pnorm := normalizeForMatch(ps.Text)
		if pnorm == "" {
			continue
		}
		if strings.HasPrefix(pnorm, norm) || strings.HasPrefix(norm, pnorm) {
			return i
		}
	}

	// No prefix match: fall back to fuzzy similarity.
	best, bestScore := -1, jaroWinklerThreshold
	for i, ps := range provider {
		if used[i] {
			continue
		}
		pnorm := normalizeForMatch(ps.Text)
		if pnorm == "" {
			continue
		}
		if score := matchr.JaroWinkler(norm, pnorm, false); score >= bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// normalizeForMatch lowercases text and strips punctuation so that cosmetic
// model edits do not break timestamp matching.
func normalizeForMatch(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
