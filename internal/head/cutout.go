package head

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ugckit/ugckit/internal/ffmpeg"
)

// Selector decides per clip whether the enhanced descriptor can be
// used, falling back to the basic circular crop with a single warning
// for the whole run.
type Selector struct {
	logger      zerolog.Logger
	detector    FaceFinder
	outputWidth int
	headScale   float64

	warnOnce sync.Once
}

func NewSelector(logger zerolog.Logger, detector FaceFinder, outputWidth int, headScale float64) *Selector {
	return &Selector{
		logger:      logger.With().Str("component", "head").Logger(),
		detector:    detector,
		outputWidth: outputWidth,
		headScale:   headScale,
	}
}

// Describe returns the cutout geometry for one avatar clip. The only
// error it can return is context cancellation.
func (s *Selector) Describe(ctx context.Context, avatarPath string, frameWidth, frameHeight int) (Descriptor, error) {
	box, err := s.detector.DetectFace(ctx, avatarPath)
	if err != nil {
		if ctx.Err() != nil {
			return Descriptor{}, ctx.Err()
		}
		s.fallback(err)
		return Basic(s.outputWidth, s.headScale), nil
	}

	desc, err := Enhanced(box, frameWidth, frameHeight, s.outputWidth, s.headScale)
	if err != nil {
		s.fallback(err)
		return Basic(s.outputWidth, s.headScale), nil
	}
	return desc, nil
}

func (s *Selector) fallback(err error) {
	s.warnOnce.Do(func() {
		s.logger.Warn().Err(err).Msg("enhanced head detection unavailable, using basic circular crop")
	})
}

// Renderer produces head-cutout video files from avatar clips.
type Renderer struct {
	logger zerolog.Logger
	exec   *ffmpeg.Executor
}

func NewRenderer(logger zerolog.Logger, exec *ffmpeg.Executor) *Renderer {
	return &Renderer{
		logger: logger.With().Str("component", "head").Logger(),
		exec:   exec,
	}
}

// RenderCutout encodes the circular head layer described by d into a
// VP9 WebM with alpha at outputPath.
func (r *Renderer) RenderCutout(ctx context.Context, avatarPath, outputPath string, d Descriptor) error {
	r.logger.Debug().
		Str("file", avatarPath).
		Str("output", outputPath).
		Str("variant", string(d.Variant)).
		Msg("rendering head cutout")

	return r.exec.Run(ctx, ffmpeg.RunOptions{
		Args: []string{
			"-i", avatarPath,
			"-filter_complex", d.CutoutFilter(),
			"-map", "[head]",
			"-c:v", "libvpx-vp9",
			"-pix_fmt", "yuva420p",
			"-auto-alt-ref", "0",
			"-an",
			"-y", outputPath,
		},
	})
}
