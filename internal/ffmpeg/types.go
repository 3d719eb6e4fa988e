package ffmpeg

import (
	"fmt"
	"strings"
)

// VideoInfo contains metadata about a media file
type VideoInfo struct {
	FilePath string
	Duration float64 // seconds
	Width    int
	Height   int
	FPS      float64
	Codec    string
	HasAudio bool
}

// Progress represents one ffmpeg progress block
type Progress struct {
	Frame    int
	FPS      float64
	Bitrate  string
	OutTime  float64 // seconds rendered so far
	Speed    string
	Fraction float64 // 0..1 when TotalDuration is known
	Done     bool
}

// ProgressFunc receives progress updates while ffmpeg runs.
type ProgressFunc func(*Progress)

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	TotalDuration   float64 // seconds; enables Fraction reporting
	ProgressHandler ProgressFunc
	LogHandler      func(line string)
}

// RunError reports a failed external run with enough detail for the caller
// to retry or report it; the executor itself never retries.
type RunError struct {
	Cmd    string
	Args   []string
	Stderr string
	Err    error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Cmd, e.Err)
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// CommandLine reconstructs the attempted invocation for display.
func (e *RunError) CommandLine() string {
	return e.Cmd + " " + strings.Join(e.Args, " ")
}
