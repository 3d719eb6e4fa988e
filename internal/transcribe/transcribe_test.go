package transcribe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

const sampleWhisperJSON = `{
	"text": " Check this out. It works.",
	"language": "en",
	"segments": [
		{
			"id": 0,
			"start": 0.0,
			"end": 2.1,
			"text": " Check this out.",
			"words": [
				{"word": " Check", "start": 0.5, "end": 0.9, "probability": 0.98},
				{"word": " this", "start": 0.9, "end": 1.2, "probability": 0.97},
				{"word": " out.", "start": 1.2, "end": 1.6, "probability": 0.95}
			]
		},
		{
			"id": 1,
			"start": 2.1,
			"end": 3.5,
			"text": " It works.",
			"words": [
				{"word": " It", "start": 2.2, "end": 2.4, "probability": 0.99},
				{"word": " works.", "start": 2.4, "end": 3.0, "probability": 0.96}
			]
		}
	]
}`

func TestParseWhisperJSON(t *testing.T) {
	transcript, err := parseWhisperJSON([]byte(sampleWhisperJSON))
	if err != nil {
		t.Fatalf("parseWhisperJSON: %v", err)
	}

	if transcript.Language != "en" {
		t.Errorf("language = %q, want en", transcript.Language)
	}
	if len(transcript.Words) != 5 {
		t.Fatalf("got %d words, want 5 across both segments", len(transcript.Words))
	}

	first := transcript.Words[0]
	if first.Text != " Check" {
		t.Errorf("word text = %q, want recognizer output preserved verbatim", first.Text)
	}
	if first.Start != 0.5 || first.End != 0.9 {
		t.Errorf("word timing = [%v, %v], want [0.5, 0.9]", first.Start, first.End)
	}

	last := transcript.Words[4]
	if last.Text != " works." || last.End != 3.0 {
		t.Errorf("last word = %+v", last)
	}
}

func TestParseWhisperJSONInvalid(t *testing.T) {
	if _, err := parseWhisperJSON([]byte("not json")); err == nil {
		t.Error("expected error for malformed output")
	}
}

func TestParseWhisperJSONNoWords(t *testing.T) {
	transcript, err := parseWhisperJSON([]byte(`{"language": "en", "segments": []}`))
	if err != nil {
		t.Fatalf("parseWhisperJSON: %v", err)
	}
	if len(transcript.Words) != 0 {
		t.Errorf("got %d words, want none", len(transcript.Words))
	}
}

// fakeTranscriber counts invocations and can fail a set number of times.
type fakeTranscriber struct {
	calls    atomic.Int64
	failures atomic.Int64
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, mediaPath string) (*Transcript, error) {
	f.calls.Add(1)
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		return nil, errors.New("model load failed")
	}
	return &Transcript{Words: []Word{{Text: mediaPath, Start: 0, End: 1}}}, nil
}

func TestCacheSingleRunPerPath(t *testing.T) {
	fake := &fakeTranscriber{}
	cache := NewCache(fake)
	ctx := context.Background()

	first, err := cache.Transcribe(ctx, "clip_a.mp4")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	second, err := cache.Transcribe(ctx, "clip_a.mp4")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if first != second {
		t.Error("repeated requests should return the cached transcript")
	}
	if got := fake.calls.Load(); got != 1 {
		t.Errorf("underlying transcriber ran %d times, want 1", got)
	}

	if _, err := cache.Transcribe(ctx, "clip_b.mp4"); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got := fake.calls.Load(); got != 2 {
		t.Errorf("distinct path should run again, got %d calls", got)
	}
}

func TestCacheConcurrentRequestsCollapse(t *testing.T) {
	fake := &fakeTranscriber{}
	cache := NewCache(fake)

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := cache.Transcribe(context.Background(), "shared.mp4"); err != nil {
				t.Errorf("Transcribe: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := fake.calls.Load(); got != 1 {
		t.Errorf("underlying transcriber ran %d times, want 1", got)
	}
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	fake := &fakeTranscriber{}
	fake.failures.Store(1)
	cache := NewCache(fake)
	ctx := context.Background()

	if _, err := cache.Transcribe(ctx, "clip.mp4"); err == nil {
		t.Fatal("expected first run to fail")
	}
	if _, err := cache.Transcribe(ctx, "clip.mp4"); err != nil {
		t.Fatalf("second run should retry and succeed: %v", err)
	}
	if got := fake.calls.Load(); got != 2 {
		t.Errorf("underlying transcriber ran %d times, want 2", got)
	}
}

func TestCacheReset(t *testing.T) {
	fake := &fakeTranscriber{}
	cache := NewCache(fake)
	ctx := context.Background()

	if _, err := cache.Transcribe(ctx, "clip.mp4"); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	cache.Reset()
	if _, err := cache.Transcribe(ctx, "clip.mp4"); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got := fake.calls.Load(); got != 2 {
		t.Errorf("reset should force a re-run, got %d calls", got)
	}
}
