package subtitles

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ugckit/ugckit/internal/config"
	"github.com/ugckit/ugckit/internal/timeline"
	"github.com/ugckit/ugckit/internal/transcribe"
)

// Generator produces the subtitle track for a composed timeline.
type Generator struct {
	logger zerolog.Logger
	tr     transcribe.Transcriber
	cfg    *config.Config
}

func NewGenerator(logger zerolog.Logger, tr transcribe.Transcriber, cfg *config.Config) *Generator {
	return &Generator{
		logger: logger.With().Str("component", "subtitles").Logger(),
		tr:     tr,
		cfg:    cfg,
	}
}

// Generate transcribes each avatar clip, shifts the word timings to
// their absolute position on the timeline, and writes the karaoke track
// to path. Returns an empty path when subtitles are disabled or no
// speech was recognized.
func (g *Generator) Generate(ctx context.Context, tl *timeline.Timeline, path string) (string, error) {
	if !g.cfg.Subtitles.Enabled {
		return "", nil
	}

	var words []transcribe.Word
	for _, entry := range tl.Layer(timeline.KindAvatar) {
		transcript, err := g.tr.Transcribe(ctx, entry.File)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			g.logger.Warn().
				Err(err).
				Str("file", entry.File).
				Msg("transcription failed, clip left unsubtitled")
			continue
		}

		for _, w := range transcript.Words {
			words = append(words, transcribe.Word{
				Text:  w.Text,
				Start: entry.Start + w.Start,
				End:   entry.Start + w.End,
			})
		}
	}

	if len(words) == 0 {
		return "", nil
	}

	lines := GroupWords(words, g.cfg.Subtitles.MaxWordsPerLine)
	if err := WriteASS(lines, g.cfg.Subtitles, g.cfg.Output.Resolution, path); err != nil {
		return "", fmt.Errorf("writing subtitle track: %w", err)
	}

	g.logger.Info().
		Int("lines", len(lines)).
		Str("path", path).
		Msg("subtitle track generated")
	return path, nil
}
