package script

import (
	"strings"

	"github.com/ugckit/ugckit/internal/config"
)

// Mode selects how a screencast is composited over its segment. The set is
// closed; new layouts require a new constant and a new graph builder.
type Mode string

const (
	ModeOverlay     Mode = "overlay"
	ModePip         Mode = "pip"
	ModeSplit       Mode = "split"
	ModeGreenscreen Mode = "greenscreen"
)

// ParseMode validates a mode string. Empty means the default overlay mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "":
		return ModeOverlay, nil
	case ModeOverlay:
		return ModeOverlay, nil
	case ModePip:
		return ModePip, nil
	case ModeSplit:
		return ModeSplit, nil
	case ModeGreenscreen:
		return ModeGreenscreen, nil
	}
	return "", config.Errorf("mode", "unrecognized value %q (want overlay, pip, split or greenscreen)", s)
}

// Overlay is one screencast request inside a segment. Timing is either
// numeric (Start/End seconds relative to the segment) or keyword-driven
// (phrases resolved against the spoken-word transcript), never both.
type Overlay struct {
	File string
	Mode Mode

	Start float64
	End   float64

	StartPhrase string
	EndPhrase   string
}

// Keyword reports whether this overlay's window comes from spoken phrases.
func (o Overlay) Keyword() bool {
	return o.StartPhrase != "" || o.EndPhrase != ""
}

// Segment is one script unit, mapped to exactly one avatar clip.
type Segment struct {
	Index    int
	Text     string
	Duration float64 // declared seconds; 0 = estimate from word count
	Overlays []Overlay
}

// EstimatedDuration returns the declared duration, or a word-count estimate
// at the given speaking rate when none was declared.
func (s Segment) EstimatedDuration(wordsPerSecond float64) float64 {
	if s.Duration > 0 {
		return s.Duration
	}
	if wordsPerSecond <= 0 {
		return 0
	}
	words := len(strings.Fields(s.Text))
	return float64(words) / wordsPerSecond
}

// Script is one parsed video script.
type Script struct {
	ID       string
	Title    string
	Persona  string
	Segments []Segment
}

// EstimatedDuration sums the segments' declared-or-estimated durations.
func (s *Script) EstimatedDuration(wordsPerSecond float64) float64 {
	var total float64
	for _, seg := range s.Segments {
		total += seg.EstimatedDuration(wordsPerSecond)
	}
	return total
}

// FindByID locates a script by ID, ignoring case, dashes and underscores.
func FindByID(scripts []*Script, id string) *Script {
	want := normalizeID(id)
	for _, s := range scripts {
		if normalizeID(s.ID) == want || strings.EqualFold(s.ID, id) {
			return s
		}
	}
	return nil
}

func normalizeID(id string) string {
	id = strings.ToLower(id)
	id = strings.ReplaceAll(id, "_", "")
	id = strings.ReplaceAll(id, "-", "")
	return id
}
