// Package smartsync resolves keyword-triggered overlay timing against
// word-level speech transcripts. Script authors write phrases like
// `word:"check this"` and the resolver converts them to the seconds at
// which those words are actually spoken in the avatar clip.
package smartsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ugckit/ugckit/internal/script"
	"github.com/ugckit/ugckit/internal/transcribe"
)

// KeywordError reports a phrase that could not be resolved to a usable
// time window. The overlay carrying the phrase is dropped; the
// composition continues.
type KeywordError struct {
	Phrase  string
	Segment int
	Reason  string
}

func (e *KeywordError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no match in transcript"
	}
	return fmt.Sprintf("keyword %q in segment %d: %s", e.Phrase, e.Segment, reason)
}

// Resolver rewrites keyword overlays into numeric windows using
// transcripts of the avatar clips.
type Resolver struct {
	logger zerolog.Logger
	tr     transcribe.Transcriber
}

func NewResolver(logger zerolog.Logger, tr transcribe.Transcriber) *Resolver {
	return &Resolver{
		logger: logger.With().Str("component", "smartsync").Logger(),
		tr:     tr,
	}
}

// Apply returns a copy of the script in which every keyword overlay has
// been replaced by a numeric overlay with segment-relative times, or
// dropped with a warning when its phrases cannot be matched. Segments
// without keyword overlays are never transcribed.
func (r *Resolver) Apply(ctx context.Context, sc *script.Script, clips []string) (*script.Script, error) {
	if !HasKeywordOverlays(sc) {
		return sc, nil
	}

	out := *sc
	out.Segments = make([]script.Segment, len(sc.Segments))
	copy(out.Segments, sc.Segments)

	for i := range out.Segments {
		seg := &out.Segments[i]
		if !segmentHasKeywords(seg) || i >= len(clips) {
			continue
		}

		transcript, err := r.tr.Transcribe(ctx, clips[i])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn().
				Err(err).
				Int("segment", seg.Index).
				Msg("transcription failed, keyword overlays left unresolved")
			continue
		}

		resolved := make([]script.Overlay, 0, len(seg.Overlays))
		for _, ov := range seg.Overlays {
			if !ov.Keyword() {
				resolved = append(resolved, ov)
				continue
			}

			start, end, err := resolveWindow(transcript.Words, ov, seg.Index)
			if err != nil {
				r.logger.Warn().
					Err(err).
					Str("file", ov.File).
					Msg("keyword phrase not matched, dropping overlay")
				continue
			}

			r.logger.Debug().
				Int("segment", seg.Index).
				Str("file", ov.File).
				Float64("start", start).
				Float64("end", end).
				Msg("keyword timing resolved")

			resolved = append(resolved, script.Overlay{
				File:  ov.File,
				Mode:  ov.Mode,
				Start: start,
				End:   end,
			})
		}
		seg.Overlays = resolved
	}

	return &out, nil
}

// HasKeywordOverlays reports whether any segment carries an overlay
// that still needs speech timing.
func HasKeywordOverlays(sc *script.Script) bool {
	for i := range sc.Segments {
		if segmentHasKeywords(&sc.Segments[i]) {
			return true
		}
	}
	return false
}

func segmentHasKeywords(seg *script.Segment) bool {
	for _, ov := range seg.Overlays {
		if ov.Keyword() {
			return true
		}
	}
	return false
}

// resolveWindow maps an overlay's start and end phrases to clip-relative
// seconds. The start phrase is matched first anywhere in the transcript;
// the end phrase is only searched after the start match, so identical
// phrases used for both triggers land on distinct occurrences. The
// window opens at the first matched word's start and closes at the last
// matched word's end.
func resolveWindow(words []transcribe.Word, ov script.Overlay, segment int) (float64, float64, error) {
	startIdx, startLen, ok := findPhrase(words, ov.StartPhrase, 0)
	if !ok {
		return 0, 0, &KeywordError{Phrase: ov.StartPhrase, Segment: segment}
	}

	endIdx, endLen, ok := findPhrase(words, ov.EndPhrase, startIdx+startLen)
	if !ok {
		return 0, 0, &KeywordError{Phrase: ov.EndPhrase, Segment: segment}
	}

	start := words[startIdx].Start
	end := words[endIdx+endLen-1].End
	if end <= start {
		return 0, 0, &KeywordError{
			Phrase:  ov.EndPhrase,
			Segment: segment,
			Reason:  fmt.Sprintf("resolved window [%.2f, %.2f) is empty", start, end),
		}
	}
	return start, end, nil
}

// findPhrase slides a window over the transcript starting at from and
// returns the index and length of the first contiguous match.
func findPhrase(words []transcribe.Word, phrase string, from int) (int, int, bool) {
	target := phraseWords(phrase)
	if len(target) == 0 {
		return 0, 0, false
	}

	for i := from; i+len(target) <= len(words); i++ {
		matched := true
		for j, kw := range target {
			if !strings.Contains(normalizeWord(words[i+j].Text), kw) {
				matched = false
				break
			}
		}
		if matched {
			return i, len(target), true
		}
	}
	return 0, 0, false
}

const punctCutset = `.,!?;:'"`

func normalizeWord(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), punctCutset)
}

// phraseWords normalizes a phrase into matchable words, discarding any
// that reduce to nothing.
func phraseWords(phrase string) []string {
	var words []string
	for _, f := range strings.Fields(phrase) {
		if w := normalizeWord(f); w != "" {
			words = append(words, w)
		}
	}
	return words
}
