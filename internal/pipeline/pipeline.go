// Package pipeline orchestrates composition end to end: it probes
// clips, resolves keyword timing, builds the timeline, pre-renders
// cutout assets, and runs (or prints) the final ffmpeg invocation.
// All external processes are invoked from here; the core packages
// below it stay pure.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ugckit/ugckit/internal/compose"
	"github.com/ugckit/ugckit/internal/config"
	"github.com/ugckit/ugckit/internal/ffmpeg"
	"github.com/ugckit/ugckit/internal/head"
	"github.com/ugckit/ugckit/internal/screencast"
	"github.com/ugckit/ugckit/internal/script"
	"github.com/ugckit/ugckit/internal/smartsync"
	"github.com/ugckit/ugckit/internal/subtitles"
	"github.com/ugckit/ugckit/internal/timeline"
	"github.com/ugckit/ugckit/internal/transcribe"
	"github.com/ugckit/ugckit/pkg/util"
)

// Pipeline wires the core packages together for one process. It is
// safe for concurrent compositions; the transcript cache is shared so
// batch runs never transcribe the same clip twice.
type Pipeline struct {
	logger   zerolog.Logger
	cfg      *config.Config
	exec     *ffmpeg.Executor
	finder   head.FaceFinder
	casts    *screencast.Library
	trans    *transcribe.Cache
	resolver *smartsync.Resolver
	builder  *timeline.Builder
	selector *head.Selector
	renderer *head.Renderer
	matting  *head.Matting
	subs     *subtitles.Generator
	composer *compose.Composer

	matteWarn sync.Once
}

// New builds a pipeline from validated configuration. ffmpeg and
// ffprobe must be present; everything else degrades at run time.
func New(logger zerolog.Logger, cfg *config.Config) (*Pipeline, error) {
	exec, err := ffmpeg.New(logger, cfg.Tools.FFmpeg, cfg.Tools.FFprobe)
	if err != nil {
		return nil, fmt.Errorf("initializing ffmpeg: %w", err)
	}

	whisper := transcribe.NewWhisper(logger, exec, cfg.Tools.Whisper, cfg.Sync.Model)
	cache := transcribe.NewCache(whisper)
	finder := faceFinder(logger, exec, cfg)

	return &Pipeline{
		logger:   logger.With().Str("component", "pipeline").Logger(),
		cfg:      cfg,
		exec:     exec,
		finder:   finder,
		casts:    screencast.NewLibrary(cfg.Paths.Screencasts),
		trans:    cache,
		resolver: smartsync.NewResolver(logger, cache),
		builder:  timeline.NewBuilder(logger, cfg.Sync.WordsPerSecond),
		selector: head.NewSelector(logger, finder, cfg.Output.Resolution.W, cfg.Composition.Pip.HeadScale),
		renderer: head.NewRenderer(logger, exec),
		matting:  head.NewMatting(logger, cfg.Tools.Matting),
		subs:     subtitles.NewGenerator(logger, cache, cfg),
		composer: compose.New(cfg),
	}, nil
}

// faceFinder picks the enhanced-detection backend: an external command
// when configured, otherwise the in-process ONNX model. With neither
// set the command detector reports unavailable on first use.
func faceFinder(logger zerolog.Logger, exec *ffmpeg.Executor, cfg *config.Config) head.FaceFinder {
	if cfg.Tools.FaceDetector == "" && cfg.Tools.FaceModel != "" {
		return head.NewModelDetector(logger, exec, cfg.Tools.FaceModel)
	}
	return head.NewDetector(logger, cfg.Tools.FaceDetector)
}

// Close releases any model session held by the face detector.
func (p *Pipeline) Close() error {
	if c, ok := p.finder.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Compose renders one script to its output file. In dry-run mode it
// stops after assembling the command; nothing is executed and no work
// directory is created.
func (p *Pipeline) Compose(ctx context.Context, sc *script.Script, opts ComposeOptions) (*Result, error) {
	if sc == nil {
		return nil, config.Errorf("script", "no script provided")
	}
	if len(opts.AvatarClips) == 0 {
		return nil, config.Errorf("avatars", "no avatar clips provided")
	}

	p.logger.Info().
		Str("script", sc.ID).
		Int("segments", len(sc.Segments)).
		Int("clips", len(opts.AvatarClips)).
		Bool("dry_run", opts.DryRun).
		Msg("starting composition")

	resolved, err := p.resolveScreencasts(sc)
	if err != nil {
		return nil, err
	}

	clips, err := p.probeClips(ctx, opts.AvatarClips, opts.DryRun)
	if err != nil {
		return nil, err
	}

	if opts.Sync {
		resolved, err = p.resolver.Apply(ctx, resolved, opts.AvatarClips)
		if err != nil {
			return nil, err
		}
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(p.cfg.Paths.Output, sc.ID+".mp4")
	}

	tl, err := p.builder.Build(resolved, clips, outputPath)
	if err != nil {
		return nil, err
	}

	if p.cfg.Music.Enabled && p.cfg.Music.File != "" {
		tl.Add(timeline.Entry{
			Start: 0,
			End:   tl.TotalDuration,
			Kind:  timeline.KindMusic,
			File:  p.cfg.Music.File,
		})
	}

	if opts.OnTimeline != nil {
		opts.OnTimeline(tl)
	}

	assets := compose.Assets{AudioPresence: audioPresence(clips)}

	if opts.DryRun {
		cmd, err := p.composer.Command(tl, assets)
		if err != nil {
			return nil, err
		}
		return &Result{Timeline: tl, Command: cmd, OutputPath: outputPath}, nil
	}

	workDir, err := p.makeWorkDir(sc.ID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if opts.KeepWork {
			p.logger.Info().Str("dir", workDir).Msg("keeping work directory")
			return
		}
		if err := os.RemoveAll(workDir); err != nil {
			p.logger.Warn().Err(err).Str("dir", workDir).Msg("work directory cleanup failed")
		}
	}()

	if err := p.prepareCutouts(ctx, tl, workDir, &assets); err != nil {
		return nil, err
	}

	if p.cfg.Subtitles.Enabled {
		assPath := filepath.Join(workDir, sc.ID+".ass")
		subFile, err := p.subs.Generate(ctx, tl, assPath)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn().Err(err).Msg("subtitle generation failed, composing without subtitles")
		} else if subFile != "" {
			assets.SubtitleFile = subFile
			tl.Add(timeline.Entry{
				Start: 0,
				End:   tl.TotalDuration,
				Kind:  timeline.KindSubtitle,
				File:  subFile,
			})
		}
	}

	cmd, err := p.composer.Command(tl, assets)
	if err != nil {
		return nil, err
	}

	for _, f := range cmd.InputFiles {
		if _, err := os.Stat(f); err != nil {
			return nil, config.Errorf("inputs", "input file missing: %s", f)
		}
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	if err := p.execute(ctx, cmd); err != nil {
		return nil, err
	}

	p.logger.Info().Str("output", outputPath).Msg("composition complete")

	res := &Result{Timeline: tl, Command: cmd, OutputPath: outputPath}
	if opts.KeepWork {
		res.WorkDir = workDir
	}
	return res, nil
}

// resolveScreencasts maps every overlay's screencast name to a library
// file path on a copy of the script. The input script is not mutated.
func (p *Pipeline) resolveScreencasts(sc *script.Script) (*script.Script, error) {
	out := *sc
	out.Segments = make([]script.Segment, len(sc.Segments))
	copy(out.Segments, sc.Segments)

	for i := range out.Segments {
		seg := &out.Segments[i]
		if len(seg.Overlays) == 0 {
			continue
		}
		overlays := make([]script.Overlay, len(seg.Overlays))
		copy(overlays, seg.Overlays)
		for j := range overlays {
			path, err := p.casts.Resolve(overlays[j].File)
			if err != nil {
				return nil, err
			}
			overlays[j].File = path
		}
		seg.Overlays = overlays
	}
	return &out, nil
}

// probeClips reads duration and audio presence for every avatar clip.
// Real runs require every file to exist and probe cleanly; dry runs
// fall back to the script's estimates for anything unprobeable.
func (p *Pipeline) probeClips(ctx context.Context, paths []string, dryRun bool) ([]timeline.Clip, error) {
	clips := make([]timeline.Clip, len(paths))
	for i, path := range paths {
		clips[i] = timeline.Clip{Path: path, HasAudio: true}

		if _, err := os.Stat(path); err != nil {
			if !dryRun {
				return nil, config.Errorf("avatars", "avatar clip not found: %s", path)
			}
			p.logger.Warn().Str("clip", path).Msg("clip missing, planning with estimated duration")
			continue
		}

		info, err := p.exec.Probe(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !dryRun {
				return nil, fmt.Errorf("probing avatar clip %s: %w", path, err)
			}
			p.logger.Warn().Err(err).Str("clip", path).Msg("probe failed, planning with estimated duration")
			continue
		}
		clips[i].Duration = info.Duration
		clips[i].HasAudio = info.HasAudio
	}
	return clips, nil
}

func audioPresence(clips []timeline.Clip) []bool {
	presence := make([]bool, len(clips))
	for i, c := range clips {
		presence[i] = c.HasAudio
	}
	return presence
}

// prepareCutouts renders the mode-specific side inputs into the work
// directory: head cutouts for pip, transparent avatars for greenscreen.
// Failures are recoverable; the graph degrades rather than the run dying.
func (p *Pipeline) prepareCutouts(ctx context.Context, tl *timeline.Timeline, workDir string, assets *compose.Assets) error {
	switch compose.DetectMode(tl) {
	case script.ModePip:
		return p.renderHeadCutouts(ctx, tl, workDir, assets)
	case script.ModeGreenscreen:
		return p.renderTransparentAvatars(ctx, tl, workDir, assets)
	}
	return nil
}

func (p *Pipeline) renderHeadCutouts(ctx context.Context, tl *timeline.Timeline, workDir string, assets *compose.Assets) error {
	avatars := tl.Layer(timeline.KindAvatar)
	heads := make([]string, len(avatars))

	for _, hc := range tl.Layer(timeline.KindHeadCutout) {
		ai := indexBySegment(avatars, hc.Segment)
		if ai < 0 || heads[ai] != "" {
			continue
		}

		desc, err := p.selector.Describe(ctx, hc.File, p.cfg.Output.Resolution.W, p.cfg.Output.Resolution.H)
		if err != nil {
			return err
		}

		out := filepath.Join(workDir, fmt.Sprintf("head_%d.webm", ai))
		p.logger.Info().
			Str("clip", filepath.Base(hc.File)).
			Str("variant", string(desc.Variant)).
			Msg("rendering head cutout")

		if err := p.renderer.RenderCutout(ctx, hc.File, out, desc); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn().Err(err).Msg("head cutout rendering failed, composing without head overlays")
			return nil
		}
		heads[ai] = out
	}

	assets.HeadVideos = heads
	return nil
}

func (p *Pipeline) renderTransparentAvatars(ctx context.Context, tl *timeline.Timeline, workDir string, assets *compose.Assets) error {
	avatars := tl.Layer(timeline.KindAvatar)

	needed := make([]bool, len(avatars))
	for _, sc := range tl.Layer(timeline.KindScreencast) {
		if sc.Mode != script.ModeGreenscreen {
			continue
		}
		if ai := indexBySegment(avatars, sc.Segment); ai >= 0 {
			needed[ai] = true
		}
	}

	mattes := make([]string, len(avatars))
	for ai, need := range needed {
		if !need {
			continue
		}
		out := filepath.Join(workDir, fmt.Sprintf("avatar_alpha_%d.webm", ai))
		if err := p.matting.RenderAlpha(ctx, avatars[ai].File, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.matteWarn.Do(func() {
				p.logger.Warn().Err(err).Msg("avatar matting unavailable, falling back to chroma key")
			})
			return nil
		}
		mattes[ai] = out
	}

	assets.TransparentAvatars = mattes
	return nil
}

func indexBySegment(avatars []timeline.Entry, segment int) int {
	for i, a := range avatars {
		if a.Segment == segment {
			return i
		}
	}
	return -1
}

func (p *Pipeline) makeWorkDir(scriptID string) (string, error) {
	base := p.cfg.Paths.Work
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, fmt.Sprintf("ugckit-%s-%s", scriptID, uuid.New().String()[:8]))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating work directory: %w", err)
	}
	return dir, nil
}

// execute runs the assembled command, logging progress at 10% steps.
func (p *Pipeline) execute(ctx context.Context, cmd *compose.Command) error {
	p.logger.Info().
		Str("output", cmd.OutputPath).
		Float64("duration", cmd.TotalDuration).
		Msg("rendering composition")

	lastStep := -1
	err := p.exec.Run(ctx, ffmpeg.RunOptions{
		Args:          cmd.Args,
		TotalDuration: cmd.TotalDuration,
		ProgressHandler: func(pr *ffmpeg.Progress) {
			step := int(pr.Fraction * 10)
			if step > lastStep {
				lastStep = step
				p.logger.Info().
					Int("percent", step*10).
					Str("position", util.FormatClock(pr.OutTime)).
					Str("speed", pr.Speed).
					Msg("render progress")
			}
		},
	})
	if err != nil {
		return fmt.Errorf("rendering failed: %w", err)
	}
	return nil
}
