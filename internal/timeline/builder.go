package timeline

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/ugckit/ugckit/internal/config"
	"github.com/ugckit/ugckit/internal/script"
)

// clampEpsilon is the width of the sliver an overlay is reduced to when
// its requested window starts at or past the end of its segment.
const clampEpsilon = 0.1

// Clip is one avatar video file. Duration is the probed length in
// seconds; zero or negative means the length is unknown and the builder
// falls back to the script's declared or estimated duration. HasAudio
// travels with the clip so the composer can substitute silence for
// soundless inputs.
type Clip struct {
	Path     string
	Duration float64
	HasAudio bool
}

// Builder turns a parsed script plus its avatar clips into a Timeline.
type Builder struct {
	logger         zerolog.Logger
	wordsPerSecond float64
}

func NewBuilder(logger zerolog.Logger, wordsPerSecond float64) *Builder {
	return &Builder{
		logger:         logger.With().Str("component", "timeline").Logger(),
		wordsPerSecond: wordsPerSecond,
	}
}

// Build places every segment and overlay on an absolute time axis.
// Clips must match segments one to one. Keyword overlays must already
// be resolved to numeric windows; any still unresolved are dropped with
// a warning.
func (b *Builder) Build(sc *script.Script, clips []Clip, outputPath string) (*Timeline, error) {
	if len(clips) != len(sc.Segments) {
		return nil, config.Errorf("clips", "script %s has %d segments but %d avatar clips were provided",
			sc.ID, len(sc.Segments), len(clips))
	}

	tl := &Timeline{
		ScriptID:   sc.ID,
		OutputPath: outputPath,
	}

	cursor := 0.0
	for i := range sc.Segments {
		seg := &sc.Segments[i]
		clip := clips[i]

		duration, err := b.segmentDuration(seg, clip)
		if err != nil {
			return nil, err
		}
		segStart := cursor
		segEnd := cursor + duration

		tl.Entries = append(tl.Entries, Entry{
			Start:   segStart,
			End:     segEnd,
			Kind:    KindAvatar,
			File:    clip.Path,
			Segment: seg.Index,
		})

		overlays := b.placeOverlays(seg, segStart, duration)
		sort.SliceStable(overlays, func(i, j int) bool {
			return overlays[i].Start < overlays[j].Start
		})
		tl.Entries = append(tl.Entries, overlays...)

		if hasPipOverlay(seg) {
			tl.Entries = append(tl.Entries, Entry{
				Start:   segStart,
				End:     segEnd,
				Kind:    KindHeadCutout,
				File:    clip.Path,
				Mode:    script.ModePip,
				Segment: seg.Index,
			})
		}

		cursor = segEnd
	}

	tl.TotalDuration = cursor

	for _, kind := range []Kind{KindScreencast, KindHeadCutout} {
		if err := checkOverlaps(kind, tl.Layer(kind)); err != nil {
			return nil, err
		}
	}

	return tl, nil
}

// segmentDuration picks the authoritative duration for one segment.
// A probed clip length always wins; a script-declared duration is next;
// the word-count estimate is a last resort that only holds up when no
// clip file has been measured, so using it is worth a warning.
func (b *Builder) segmentDuration(seg *script.Segment, clip Clip) (float64, error) {
	if clip.Duration > 0 {
		return clip.Duration, nil
	}
	if seg.Duration > 0 {
		return seg.Duration, nil
	}

	estimate := seg.EstimatedDuration(b.wordsPerSecond)
	if estimate <= 0 {
		return 0, config.Errorf("segment", "segment %d has no duration, probed clip, or text to estimate from", seg.Index)
	}

	b.logger.Warn().
		Int("segment", seg.Index).
		Float64("duration", estimate).
		Msg("no clip duration available, using word-count estimate")
	return estimate, nil
}

// placeOverlays converts a segment's overlay requests into absolute
// entries, clamping windows that run past the segment end.
func (b *Builder) placeOverlays(seg *script.Segment, segStart, duration float64) []Entry {
	segEnd := segStart + duration

	var entries []Entry
	for _, ov := range seg.Overlays {
		if ov.Keyword() {
			b.logger.Warn().
				Int("segment", seg.Index).
				Str("file", ov.File).
				Str("phrase", ov.StartPhrase).
				Msg("keyword overlay was not resolved, dropping")
			continue
		}

		start := segStart + ov.Start
		end := segStart + ov.End

		switch {
		case ov.Start >= duration:
			start = segEnd - clampEpsilon
			if start < segStart {
				start = segStart
			}
			end = segEnd
			b.logger.Warn().
				Int("segment", seg.Index).
				Str("file", ov.File).
				Float64("requested_start", ov.Start).
				Float64("segment_duration", duration).
				Msg("overlay window starts past segment end, clamping")
		case ov.End > duration:
			end = segEnd
			b.logger.Warn().
				Int("segment", seg.Index).
				Str("file", ov.File).
				Float64("requested_end", ov.End).
				Float64("segment_duration", duration).
				Msg("overlay window runs past segment end, clamping")
		}

		entries = append(entries, Entry{
			Start:   start,
			End:     end,
			Kind:    KindScreencast,
			File:    ov.File,
			Mode:    ov.Mode,
			Segment: seg.Index,
		})
	}
	return entries
}

func hasPipOverlay(seg *script.Segment) bool {
	for _, ov := range seg.Overlays {
		if !ov.Keyword() && ov.Mode == script.ModePip {
			return true
		}
	}
	return false
}

// checkOverlaps walks entries of one kind sorted by start time and
// rejects any pair of intersecting windows.
func checkOverlaps(kind Kind, entries []Entry) error {
	var reach *Entry
	for i := range entries {
		e := &entries[i]
		if reach != nil && e.Start < reach.End {
			return &OverlapError{
				Kind:   kind,
				FileA:  reach.File,
				StartA: reach.Start,
				EndA:   reach.End,
				FileB:  e.File,
				StartB: e.Start,
				EndB:   e.End,
			}
		}
		if reach == nil || e.End > reach.End {
			reach = e
		}
	}
	return nil
}
