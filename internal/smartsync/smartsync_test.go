package smartsync

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ugckit/ugckit/internal/script"
	"github.com/ugckit/ugckit/internal/transcribe"
)

// demoWords mimics whisper output for "Okay check this out, the counter
// updates live and done." with leading spaces and punctuation intact.
var demoWords = []transcribe.Word{
	{Text: " Okay", Start: 1.2, End: 1.8},
	{Text: " check", Start: 2.0, End: 2.4},
	{Text: " this", Start: 2.4, End: 2.7},
	{Text: " out,", Start: 2.7, End: 3.1},
	{Text: " the", Start: 3.3, End: 3.5},
	{Text: " counter", Start: 3.5, End: 4.0},
	{Text: " updates", Start: 4.0, End: 4.4},
	{Text: " live", Start: 4.4, End: 4.7},
	{Text: " and", Start: 4.7, End: 4.9},
	{Text: " done.", Start: 4.9, End: 5.2},
}

func TestResolveWindow(t *testing.T) {
	ov := script.Overlay{File: "stats.mp4", StartPhrase: "check this", EndPhrase: "and done"}

	start, end, err := resolveWindow(demoWords, ov, 1)
	if err != nil {
		t.Fatalf("resolveWindow: %v", err)
	}
	if start != 2.0 {
		t.Errorf("start = %v, want start of first matched word 2.0", start)
	}
	if end != 5.2 {
		t.Errorf("end = %v, want end of last matched word 5.2", end)
	}
}

func TestResolveWindowNormalizesCaseAndPunctuation(t *testing.T) {
	ov := script.Overlay{File: "s.mp4", StartPhrase: "CHECK THIS OUT", EndPhrase: "Done!"}

	start, end, err := resolveWindow(demoWords, ov, 1)
	if err != nil {
		t.Fatalf("resolveWindow: %v", err)
	}
	if start != 2.0 || end != 5.2 {
		t.Errorf("window = [%v, %v), want [2.0, 5.2)", start, end)
	}
}

func TestResolveWindowSubstringMatch(t *testing.T) {
	ov := script.Overlay{File: "s.mp4", StartPhrase: "count", EndPhrase: "live"}

	start, end, err := resolveWindow(demoWords, ov, 1)
	if err != nil {
		t.Fatalf("substring keyword should match %q: %v", "counter", err)
	}
	if start != 3.5 || end != 4.7 {
		t.Errorf("window = [%v, %v), want [3.5, 4.7)", start, end)
	}
}

func TestResolveWindowEndSearchedAfterStart(t *testing.T) {
	words := []transcribe.Word{
		{Text: " counter", Start: 1.0, End: 1.5},
		{Text: " resets", Start: 1.5, End: 2.0},
		{Text: " counter", Start: 4.0, End: 4.6},
	}
	ov := script.Overlay{File: "s.mp4", StartPhrase: "counter", EndPhrase: "counter"}

	start, end, err := resolveWindow(words, ov, 1)
	if err != nil {
		t.Fatalf("resolveWindow: %v", err)
	}
	if start != 1.0 || end != 4.6 {
		t.Errorf("identical phrases should land on distinct occurrences, got [%v, %v)", start, end)
	}
}

func TestResolveWindowStartPhraseMissing(t *testing.T) {
	ov := script.Overlay{File: "s.mp4", StartPhrase: "nonexistent words", EndPhrase: "done"}

	_, _, err := resolveWindow(demoWords, ov, 3)
	var kwErr *KeywordError
	if !errors.As(err, &kwErr) {
		t.Fatalf("want KeywordError, got %v", err)
	}
	if kwErr.Phrase != "nonexistent words" || kwErr.Segment != 3 {
		t.Errorf("error should identify phrase and segment: %+v", kwErr)
	}
}

func TestResolveWindowEndOnlyBeforeStart(t *testing.T) {
	ov := script.Overlay{File: "s.mp4", StartPhrase: "counter", EndPhrase: "okay"}

	_, _, err := resolveWindow(demoWords, ov, 1)
	var kwErr *KeywordError
	if !errors.As(err, &kwErr) {
		t.Fatalf("end phrase occurring only before the start match must fail, got %v", err)
	}
	if kwErr.Phrase != "okay" {
		t.Errorf("error names %q, want the end phrase", kwErr.Phrase)
	}
}

func TestResolveWindowDegenerateTiming(t *testing.T) {
	words := []transcribe.Word{
		{Text: " go", Start: 3.0, End: 3.5},
		{Text: " now", Start: 1.0, End: 1.2},
	}
	ov := script.Overlay{File: "s.mp4", StartPhrase: "go", EndPhrase: "now"}

	_, _, err := resolveWindow(words, ov, 1)
	var kwErr *KeywordError
	if !errors.As(err, &kwErr) {
		t.Fatalf("empty resolved window must fail, got %v", err)
	}
}

// fakeTranscriber serves one canned transcript and counts runs.
type fakeTranscriber struct {
	words []transcribe.Word
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, mediaPath string) (*transcribe.Transcript, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &transcribe.Transcript{Words: f.words}, nil
}

func keywordScript() *script.Script {
	return &script.Script{
		ID: "A1",
		Segments: []script.Segment{
			{Index: 1, Text: "intro", Overlays: []script.Overlay{
				{File: "numeric.mp4", Start: 1, End: 2},
			}},
			{Index: 2, Text: "demo", Overlays: []script.Overlay{
				{File: "stats.mp4", Mode: script.ModePip, StartPhrase: "check this", EndPhrase: "and done"},
			}},
		},
	}
}

func TestApplyResolvesKeywordOverlays(t *testing.T) {
	fake := &fakeTranscriber{words: demoWords}
	resolver := NewResolver(zerolog.Nop(), fake)

	sc := keywordScript()
	resolved, err := resolver.Apply(context.Background(), sc, []string{"clip1.mp4", "clip2.mp4"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if fake.calls != 1 {
		t.Errorf("transcriber ran %d times, want 1 (only the keyword segment)", fake.calls)
	}

	ov := resolved.Segments[1].Overlays[0]
	if ov.Keyword() {
		t.Error("resolved overlay should no longer carry phrases")
	}
	if ov.Start != 2.0 || ov.End != 5.2 {
		t.Errorf("resolved window = [%v, %v), want [2.0, 5.2)", ov.Start, ov.End)
	}
	if ov.Mode != script.ModePip || ov.File != "stats.mp4" {
		t.Errorf("mode and file must survive resolution: %+v", ov)
	}

	if got := resolved.Segments[0].Overlays[0]; got.Start != 1 || got.End != 2 {
		t.Errorf("numeric overlay should pass through unchanged: %+v", got)
	}

	if sc.Segments[1].Overlays[0].StartPhrase != "check this" {
		t.Error("input script must not be mutated")
	}
}

func TestApplyDropsUnmatchedOverlay(t *testing.T) {
	fake := &fakeTranscriber{words: demoWords}
	var buf bytes.Buffer
	resolver := NewResolver(zerolog.New(&buf), fake)

	sc := &script.Script{
		ID: "A1",
		Segments: []script.Segment{
			{Index: 1, Text: "demo", Overlays: []script.Overlay{
				{File: "stats.mp4", StartPhrase: "never spoken", EndPhrase: "done"},
			}},
		},
	}

	resolved, err := resolver.Apply(context.Background(), sc, []string{"clip1.mp4"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(resolved.Segments[0].Overlays) != 0 {
		t.Error("unmatched overlay should be dropped")
	}
	if !strings.Contains(buf.String(), "dropping overlay") {
		t.Error("drop should surface a warning")
	}
}

func TestApplyKeepsOverlaysWhenTranscriptionFails(t *testing.T) {
	fake := &fakeTranscriber{err: errors.New("whisper not installed")}
	var buf bytes.Buffer
	resolver := NewResolver(zerolog.New(&buf), fake)

	sc := keywordScript()
	resolved, err := resolver.Apply(context.Background(), sc, []string{"clip1.mp4", "clip2.mp4"})
	if err != nil {
		t.Fatalf("transcription failure is recoverable: %v", err)
	}
	if !resolved.Segments[1].Overlays[0].Keyword() {
		t.Error("unresolvable overlay should be left for downstream handling")
	}
	if !strings.Contains(buf.String(), "transcription failed") {
		t.Error("failure should surface a warning")
	}
}

func TestApplySkipsTranscriptionWithoutKeywords(t *testing.T) {
	fake := &fakeTranscriber{words: demoWords}
	resolver := NewResolver(zerolog.Nop(), fake)

	sc := &script.Script{
		ID: "A1",
		Segments: []script.Segment{
			{Index: 1, Text: "demo", Overlays: []script.Overlay{
				{File: "numeric.mp4", Start: 1, End: 2},
			}},
		},
	}

	resolved, err := resolver.Apply(context.Background(), sc, []string{"clip1.mp4"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if fake.calls != 0 {
		t.Errorf("transcriber ran %d times, want 0", fake.calls)
	}
	if resolved != sc {
		t.Error("script without keywords should be returned as-is")
	}
}

func TestHasKeywordOverlays(t *testing.T) {
	if !HasKeywordOverlays(keywordScript()) {
		t.Error("script with phrase overlays should report keywords")
	}
	plain := &script.Script{Segments: []script.Segment{{Index: 1}}}
	if HasKeywordOverlays(plain) {
		t.Error("script without overlays should not report keywords")
	}
}
