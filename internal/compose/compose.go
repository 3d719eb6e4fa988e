// Package compose synthesizes ffmpeg filter graphs and render commands
// from a resolved timeline. Nothing here touches the filesystem or runs
// a process; the output is a complete command description the pipeline
// can execute or print for a dry run.
package compose

import (
	"strconv"
	"strings"

	"github.com/ugckit/ugckit/internal/config"
	"github.com/ugckit/ugckit/internal/script"
	"github.com/ugckit/ugckit/internal/timeline"
)

// Assets carries the side inputs prepared by the pipeline before
// composition. Per-avatar slices are indexed by avatar position in the
// timeline; an empty string means nothing was prepared for that clip.
type Assets struct {
	// AudioPresence marks which avatar clips have an audio stream.
	// Nil means all of them do.
	AudioPresence []bool

	// HeadVideos holds pre-rendered circular head cutouts for pip mode.
	HeadVideos []string

	// TransparentAvatars holds pre-rendered alpha mattes for
	// greenscreen mode. When none exist the graph falls back to
	// chroma-keying the raw avatar inputs.
	TransparentAvatars []string

	// SubtitleFile is a rendered ASS file to burn in, if any.
	SubtitleFile string

	// MusicFile overrides the configured background track.
	MusicFile string
}

// Command is a fully assembled ffmpeg invocation.
type Command struct {
	InputFiles    []string
	Filter        string
	OutputPath    string
	Args          []string
	TotalDuration float64
}

// String renders the invocation as a copy-pasteable shell line.
func (cmd *Command) String() string {
	parts := make([]string, 0, len(cmd.Args)+1)
	parts = append(parts, "ffmpeg")
	for _, a := range cmd.Args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$&|;<>()*?[]{}#~`") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Composer turns timelines into render commands.
type Composer struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Composer {
	return &Composer{cfg: cfg}
}

// Command assembles the ffmpeg invocation for a timeline. Input order
// is avatars, then screencasts, then mode extras (head cutouts or
// transparent avatars), then the music track.
func (c *Composer) Command(tl *timeline.Timeline, assets Assets) (*Command, error) {
	avatars := tl.Layer(timeline.KindAvatar)
	casts := tl.Layer(timeline.KindScreencast)
	if len(avatars) == 0 {
		return nil, config.Errorf("timeline", "timeline has no avatar entries")
	}
	if tl.OutputPath == "" {
		return nil, config.Errorf("output", "timeline has no output path")
	}

	presence := assets.AudioPresence
	if presence == nil {
		presence = make([]bool, len(avatars))
		for i := range presence {
			presence[i] = true
		}
	}
	if len(presence) != len(avatars) {
		return nil, config.Errorf("audio", "audio presence covers %d clips but the timeline has %d avatar entries", len(presence), len(avatars))
	}

	files := make([]string, 0, len(avatars)+len(casts)+len(avatars)+1)
	for _, a := range avatars {
		files = append(files, a.File)
	}
	for _, sc := range casts {
		files = append(files, sc.File)
	}

	mode := DetectMode(tl)

	headIndex := make(map[int]int)
	taIndex := make(map[int]int)
	switch mode {
	case script.ModePip:
		for ai, path := range assets.HeadVideos {
			if path == "" || ai >= len(avatars) {
				continue
			}
			headIndex[ai] = len(files)
			files = append(files, path)
		}
	case script.ModeGreenscreen:
		for ai, path := range assets.TransparentAvatars {
			if path == "" || ai >= len(avatars) {
				continue
			}
			taIndex[ai] = len(files)
			files = append(files, path)
		}
	}

	musicFile := assets.MusicFile
	if musicFile == "" && c.cfg.Music.Enabled {
		musicFile = c.cfg.Music.File
	}
	musicIndex := -1
	if musicFile != "" {
		musicIndex = len(files)
		files = append(files, musicFile)
	}

	var filter string
	var err error
	switch mode {
	case script.ModeOverlay:
		filter, err = c.buildOverlay(tl, presence)
	case script.ModePip:
		filter, err = c.buildPip(tl, presence, headIndex)
	case script.ModeSplit:
		filter, err = c.buildSplit(tl, presence)
	case script.ModeGreenscreen:
		filter, err = c.buildGreenscreen(tl, presence, taIndex, len(taIndex) > 0)
	default:
		return nil, config.Errorf("mode", "unrecognized composition mode %q", string(mode))
	}
	if err != nil {
		return nil, err
	}

	filter = c.wrapPostProcessing(filter, assets.SubtitleFile, musicIndex, tl.TotalDuration)

	args := make([]string, 0, 2*len(files)+24)
	for _, f := range files {
		args = append(args, "-i", f)
	}
	args = append(args,
		"-filter_complex", filter,
		"-map", "[vout]",
		"-map", "[aout]",
		"-c:v", c.cfg.Output.Codec,
		"-preset", c.cfg.Output.Preset,
		"-crf", strconv.Itoa(c.cfg.Output.CRF),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(c.cfg.Output.FPS),
		"-c:a", c.cfg.Audio.Codec,
		"-b:a", c.cfg.Audio.Bitrate,
		"-movflags", "+faststart",
		"-y", tl.OutputPath,
	)

	return &Command{
		InputFiles:    files,
		Filter:        filter,
		OutputPath:    tl.OutputPath,
		Args:          args,
		TotalDuration: tl.TotalDuration,
	}, nil
}
