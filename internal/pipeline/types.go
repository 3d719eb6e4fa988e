package pipeline

import (
	"github.com/ugckit/ugckit/internal/compose"
	"github.com/ugckit/ugckit/internal/timeline"
)

// ComposeOptions configures a single composition run.
type ComposeOptions struct {
	// AvatarClips are the avatar video files, one per script segment,
	// in segment order.
	AvatarClips []string

	// OutputPath overrides the default <output dir>/<script id>.mp4.
	OutputPath string

	// Sync resolves keyword overlay windows against whisper
	// transcripts before building the timeline.
	Sync bool

	// DryRun builds the timeline and the render command without
	// touching ffmpeg, whisper, or the work directory.
	DryRun bool

	// KeepWork leaves the per-run work directory in place.
	KeepWork bool

	// OnTimeline, when set, receives the built timeline before any
	// rendering starts. The CLI uses it to display the plan ahead of
	// a long render.
	OnTimeline func(*timeline.Timeline)
}

// Result is the outcome of one composition.
type Result struct {
	Timeline   *timeline.Timeline
	Command    *compose.Command
	OutputPath string

	// WorkDir is set when the work directory was kept.
	WorkDir string
}

// BatchOptions configures a batch run over a scripts directory.
type BatchOptions struct {
	// Jobs bounds how many scripts compose concurrently. Values
	// below 1 mean sequential.
	Jobs int

	Sync     bool
	DryRun   bool
	KeepWork bool
}

// BatchResult reports one script's outcome within a batch. Skipped
// scripts had no matching avatar clips; failed ones carry Err. A batch
// never stops on individual failures.
type BatchResult struct {
	ScriptID string
	Output   string
	Result   *Result
	Skipped  bool
	Err      error
}
