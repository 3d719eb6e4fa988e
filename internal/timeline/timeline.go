package timeline

import (
	"fmt"
	"strings"

	"github.com/ugckit/ugckit/internal/script"
)

// Kind identifies which visual or audio layer an entry belongs to.
type Kind string

const (
	KindAvatar     Kind = "avatar"
	KindScreencast Kind = "screencast"
	KindHeadCutout Kind = "head-cutout"
	KindSubtitle   Kind = "subtitle"
	KindMusic      Kind = "music"
)

// Entry is one resolved layer placement. Start and End are absolute
// seconds from the timeline origin.
type Entry struct {
	Start   float64
	End     float64
	Kind    Kind
	File    string
	Mode    script.Mode
	Segment int
}

// Timeline is the absolute-time layout of all layers for one
// composition. Entries are grouped by segment in build order; within
// each kind, start times are monotonic non-decreasing.
type Timeline struct {
	ScriptID      string
	TotalDuration float64
	Entries       []Entry
	OutputPath    string
}

// Layer returns the entries of one kind in timeline order.
func (t *Timeline) Layer(kind Kind) []Entry {
	var entries []Entry
	for _, e := range t.Entries {
		if e.Kind == kind {
			entries = append(entries, e)
		}
	}
	return entries
}

// Add appends an entry. Used for post-processing layers (subtitles,
// music) that are produced after the base timeline is built.
func (t *Timeline) Add(e Entry) {
	t.Entries = append(t.Entries, e)
}

// Format renders the timeline for terminal display.
func (t *Timeline) Format() string {
	lines := []string{
		fmt.Sprintf("Timeline for %s (total: %.1fs):", t.ScriptID, t.TotalDuration),
		strings.Repeat("━", 50),
	}

	for _, entry := range t.Entries {
		indent := "  "
		if entry.Kind != KindAvatar {
			indent = "  └─ "
		}
		lines = append(lines, fmt.Sprintf("%5.1fs - %5.1fs │ %s%s: %s",
			entry.Start, entry.End, indent, entry.Kind, baseName(entry.File)))
	}

	lines = append(lines, strings.Repeat("━", 50))
	if t.OutputPath != "" {
		lines = append(lines, fmt.Sprintf("Output: %s", t.OutputPath))
	}

	return strings.Join(lines, "\n")
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// OverlapError reports two entries of the same kind whose time windows
// intersect. Overlapping layers cannot be composited deterministically,
// so this aborts the composition.
type OverlapError struct {
	Kind   Kind
	FileA  string
	StartA float64
	EndA   float64
	FileB  string
	StartB float64
	EndB   float64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlapping %s entries: %s [%.2f, %.2f) and %s [%.2f, %.2f)",
		e.Kind, e.FileA, e.StartA, e.EndA, e.FileB, e.StartB, e.EndB)
}
