package ffmpeg

import (
	"context"

	"github.com/ugckit/ugckit/pkg/util"
)

// ExtractFrame saves the frame at the given timestamp as a still image.
// The output format follows the file extension.
func (e *Executor) ExtractFrame(ctx context.Context, input string, atSeconds float64, output string) error {
	e.logger.Debug().
		Str("input", input).
		Float64("at", atSeconds).
		Str("output", output).
		Msg("extracting frame")

	args := []string{
		"-ss", util.FormatClock(atSeconds),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2",
		"-y", output,
	}

	return e.Run(ctx, RunOptions{Args: args})
}
