package script

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ugckit/ugckit/internal/config"
)

const sampleScript = `# Scripts batch 3

### Script A1: "Day 347 of duolingo"
**Persona:** tired language student

**Clip 1 (6s):**
Says: "Okay so check this out, day three hundred and forty seven."
[screencast: stats @ 1.5-4.0]

**Clip 2 (payoff):**
Says: "And here is where it gets interesting, watch the streak counter."
[screencast: streak @ word:"watch the"-word:"counter" mode:pip]

### Script B2: 'Gym app review'

**Clip 1 (5s):**
Says: "This app changed my entire routine."
`

func TestParseScripts(t *testing.T) {
	scripts, err := Parse(sampleScript)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(scripts) != 2 {
		t.Fatalf("got %d scripts, want 2", len(scripts))
	}

	a1 := scripts[0]
	if a1.ID != "A1" {
		t.Errorf("ID = %q, want A1", a1.ID)
	}
	if a1.Title != "Day 347 of duolingo" {
		t.Errorf("Title = %q", a1.Title)
	}
	if a1.Persona != "tired language student" {
		t.Errorf("Persona = %q", a1.Persona)
	}
	if len(a1.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(a1.Segments))
	}

	seg1 := a1.Segments[0]
	if seg1.Index != 1 || seg1.Duration != 6 {
		t.Errorf("segment 1 = index %d duration %v, want 1/6", seg1.Index, seg1.Duration)
	}
	if !strings.HasPrefix(seg1.Text, "Okay so check this out") {
		t.Errorf("segment 1 text = %q", seg1.Text)
	}
	if len(seg1.Overlays) != 1 {
		t.Fatalf("segment 1 overlays = %d, want 1", len(seg1.Overlays))
	}
	ov := seg1.Overlays[0]
	if ov.File != "stats.mp4" || ov.Start != 1.5 || ov.End != 4.0 || ov.Mode != ModeOverlay {
		t.Errorf("overlay = %+v", ov)
	}
	if ov.Keyword() {
		t.Error("numeric overlay reported as keyword")
	}

	seg2 := a1.Segments[1]
	if seg2.Duration != 0 {
		t.Errorf("segment 2 declared duration = %v, want 0 (estimate)", seg2.Duration)
	}
	if len(seg2.Overlays) != 1 {
		t.Fatalf("segment 2 overlays = %d, want 1", len(seg2.Overlays))
	}
	kw := seg2.Overlays[0]
	if !kw.Keyword() {
		t.Fatal("keyword overlay not detected")
	}
	if kw.StartPhrase != "watch the" || kw.EndPhrase != "counter" || kw.Mode != ModePip {
		t.Errorf("keyword overlay = %+v", kw)
	}

	b2 := scripts[1]
	if b2.ID != "B2" || b2.Title != "Gym app review" {
		t.Errorf("second script = %q %q", b2.ID, b2.Title)
	}
}

func TestParseOverlayTagExtensions(t *testing.T) {
	overlays, err := ParseOverlayTags(`[screencast: demo.mov @ 0.5-2.0] [screencast: chart @ 1-3 mode:split]`)
	if err != nil {
		t.Fatalf("ParseOverlayTags: %v", err)
	}
	if len(overlays) != 2 {
		t.Fatalf("got %d overlays, want 2", len(overlays))
	}
	if overlays[0].File != "demo.mov" {
		t.Errorf("existing extension rewritten: %q", overlays[0].File)
	}
	if overlays[1].File != "chart.mp4" {
		t.Errorf("bare name not extended: %q", overlays[1].File)
	}
	if overlays[1].Mode != ModeSplit {
		t.Errorf("mode = %q, want split", overlays[1].Mode)
	}
}

func TestParseOverlayTagRejections(t *testing.T) {
	cases := []struct {
		name string
		tag  string
	}{
		{"end before start", "[screencast: stats @ 4.0-1.5]"},
		{"zero length", "[screencast: stats @ 2-2]"},
		{"unknown mode", "[screencast: stats @ 1-2 mode:diagonal]"},
		{"garbage body", "[screencast: what even is this]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseOverlayTags(tc.tag)
			if err == nil {
				t.Fatal("expected error")
			}
			var cfgErr *config.Error
			if !errors.As(err, &cfgErr) {
				t.Errorf("error %T is not *config.Error", err)
			}
		})
	}
}

func TestEstimatedDuration(t *testing.T) {
	seg := Segment{Text: "one two three four five six seven eight nine"}
	if got := seg.EstimatedDuration(3.0); got != 3.0 {
		t.Errorf("estimate = %v, want 3.0", got)
	}

	declared := Segment{Text: "irrelevant", Duration: 7.5}
	if got := declared.EstimatedDuration(3.0); got != 7.5 {
		t.Errorf("declared duration = %v, want 7.5", got)
	}
}

func TestFindByID(t *testing.T) {
	scripts, err := Parse(sampleScript)
	if err != nil {
		t.Fatal(err)
	}

	if s := FindByID(scripts, "a1"); s == nil || s.ID != "A1" {
		t.Error("case-insensitive lookup failed")
	}
	if s := FindByID(scripts, "B-2"); s == nil || s.ID != "B2" {
		t.Error("dash-normalized lookup failed")
	}
	if s := FindByID(scripts, "C9"); s != nil {
		t.Errorf("unexpected match: %v", s.ID)
	}
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "batch.md"), []byte(sampleScript), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a script"), 0644); err != nil {
		t.Fatal(err)
	}

	scripts, err := ParseDir(dir)
	if err != nil {
		t.Fatalf("ParseDir: %v", err)
	}
	if len(scripts) != 2 {
		t.Errorf("got %d scripts, want 2", len(scripts))
	}
}
