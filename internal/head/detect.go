package head

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// ErrUnavailable marks the enhanced detection or matting capability as
// absent or unable to produce a result. Callers fall back to the basic
// variant; this is never fatal.
var ErrUnavailable = errors.New("enhanced head capability unavailable")

// Box is a face bounding box with coordinates normalized to [0, 1]
// relative to the frame.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// FaceFinder locates a single face box in a clip. Implementations must
// report ErrUnavailable for any failure short of context cancellation.
type FaceFinder interface {
	DetectFace(ctx context.Context, mediaPath string) (Box, error)
}

// Detector invokes an external face-detection tool. The tool receives
// the media path as its only argument and prints one JSON object with
// normalized x, y, width, height fields on stdout.
type Detector struct {
	logger zerolog.Logger
	binary string
}

func NewDetector(logger zerolog.Logger, binary string) *Detector {
	return &Detector{
		logger: logger.With().Str("component", "head").Logger(),
		binary: binary,
	}
}

// DetectFace samples the clip for a face box. Every failure short of
// context cancellation is reported as ErrUnavailable.
func (d *Detector) DetectFace(ctx context.Context, mediaPath string) (Box, error) {
	if d.binary == "" {
		return Box{}, fmt.Errorf("no face detector configured: %w", ErrUnavailable)
	}

	binPath, err := exec.LookPath(d.binary)
	if err != nil {
		return Box{}, fmt.Errorf("face detector %q not found: %w", d.binary, ErrUnavailable)
	}

	out, err := exec.CommandContext(ctx, binPath, mediaPath).Output()
	if err != nil {
		if ctx.Err() != nil {
			return Box{}, ctx.Err()
		}
		return Box{}, fmt.Errorf("face detector failed: %v: %w", err, ErrUnavailable)
	}

	box, err := parseDetection(out)
	if err != nil {
		return Box{}, err
	}

	d.logger.Debug().
		Str("file", mediaPath).
		Float64("x", box.X).
		Float64("y", box.Y).
		Float64("width", box.W).
		Float64("height", box.H).
		Msg("face detected")
	return box, nil
}

func parseDetection(data []byte) (Box, error) {
	var box Box
	if err := json.Unmarshal(data, &box); err != nil {
		return Box{}, fmt.Errorf("unreadable detector output: %v: %w", err, ErrUnavailable)
	}
	if box.W <= 0 || box.H <= 0 {
		return Box{}, fmt.Errorf("no face in detector output: %w", ErrUnavailable)
	}
	return box, nil
}

// Matting invokes an external background-matting tool that produces an
// alpha-channel video. The tool receives the input and output paths as
// its two arguments.
type Matting struct {
	logger zerolog.Logger
	binary string
}

func NewMatting(logger zerolog.Logger, binary string) *Matting {
	return &Matting{
		logger: logger.With().Str("component", "head").Logger(),
		binary: binary,
	}
}

// RenderAlpha produces a transparent-background version of the avatar
// clip at outputPath. Failures are reported as ErrUnavailable so the
// caller can fall back to chroma keying.
func (m *Matting) RenderAlpha(ctx context.Context, avatarPath, outputPath string) error {
	if m.binary == "" {
		return fmt.Errorf("no matting tool configured: %w", ErrUnavailable)
	}

	binPath, err := exec.LookPath(m.binary)
	if err != nil {
		return fmt.Errorf("matting tool %q not found: %w", m.binary, ErrUnavailable)
	}

	m.logger.Debug().
		Str("file", avatarPath).
		Str("output", outputPath).
		Msg("rendering transparent avatar")

	out, err := exec.CommandContext(ctx, binPath, avatarPath, outputPath).CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("matting failed: %v: %s: %w", err, out, ErrUnavailable)
	}
	return nil
}
