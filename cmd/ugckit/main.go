package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ugckit/ugckit/internal/config"
	"github.com/ugckit/ugckit/internal/logging"
	"github.com/ugckit/ugckit/internal/pipeline"
	"github.com/ugckit/ugckit/internal/screencast"
	"github.com/ugckit/ugckit/internal/script"
	"github.com/ugckit/ugckit/internal/timeline"
	"github.com/ugckit/ugckit/pkg/util"
)

var (
	cfgFile   string
	logLevel  string
	logPretty bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ugckit",
	Short:   "ugckit - UGC video assembly tool",
	Long:    "Combine AI avatar clips with app screencasts into short vertical videos, driven by markdown scripts.",
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		logging.Init(logLevel, logPretty)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ugckit.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "log-pretty", true, "human-readable log output")

	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(scriptsCmd)
	rootCmd.AddCommand(configCmd)
}

var composeOpts struct {
	script           string
	avatars          []string
	avatarDir        string
	screencasts      string
	scriptsDir       string
	output           string
	mode             string
	sync             bool
	syncModel        string
	subtitles        bool
	subtitleFontSize int
	music            string
	musicVolume      float64
	musicFadeOut     float64
	headPosition     string
	headScale        float64
	splitRatio       float64
	avatarSide       string
	gsAvatarScale    float64
	gsAvatarPosition string
	dryRun           bool
	keepWork         bool
}

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose a video from a script and avatar clips",
	Long: `Compose a video from a script and avatar clips.

Provide avatars via --avatars (one per segment, in order) or
--avatar-dir (all .mp4 files, sorted by name).`,
	Example: `  ugckit compose --script A1 --avatars seg1.mp4 --avatars seg2.mp4
  ugckit compose --script A1 --avatar-dir ./avatars/ --mode pip --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		if err := applyComposeOverrides(cmd, cfg); err != nil {
			return err
		}

		sc, err := loadScript(cfg, composeOpts.script, composeOpts.scriptsDir)
		if err != nil {
			return err
		}

		mode, err := script.ParseMode(composeOpts.mode)
		if err != nil {
			return err
		}
		if mode != script.ModeOverlay {
			forceMode(sc, mode)
		}

		avatars := composeOpts.avatars
		if len(avatars) == 0 && composeOpts.avatarDir != "" {
			avatars, err = pipeline.ListAvatarClips(composeOpts.avatarDir)
			if err != nil {
				return err
			}
		}
		if len(avatars) == 0 {
			return config.Errorf("avatars", "provide --avatars or --avatar-dir")
		}

		pipe, err := pipeline.New(log.Logger, cfg)
		if err != nil {
			return err
		}
		defer pipe.Close()

		res, err := pipe.Compose(cmd.Context(), sc, pipeline.ComposeOptions{
			AvatarClips: avatars,
			OutputPath:  resolveOutputPath(composeOpts.output, sc.ID),
			Sync:        composeOpts.sync,
			DryRun:      composeOpts.dryRun,
			KeepWork:    composeOpts.keepWork,
			OnTimeline: func(tl *timeline.Timeline) {
				fmt.Println(tl.Format())
			},
		})
		if err != nil {
			return err
		}

		if composeOpts.dryRun {
			fmt.Println("Dry run - no video will be rendered")
			fmt.Println()
			fmt.Println("FFmpeg command:")
			fmt.Println(res.Command.String())
			return nil
		}

		fmt.Printf("Done! Output: %s\n", res.OutputPath)
		return nil
	},
}

func init() {
	f := composeCmd.Flags()
	f.StringVarP(&composeOpts.script, "script", "s", "", "script ID (e.g. A1) or path to a markdown file")
	f.StringArrayVarP(&composeOpts.avatars, "avatars", "a", nil, "avatar video files, one per segment, in order")
	f.StringVar(&composeOpts.avatarDir, "avatar-dir", "", "directory of avatar .mp4 files (sorted by name)")
	f.StringVarP(&composeOpts.screencasts, "screencasts", "c", "", "directory of screencast files")
	f.StringVarP(&composeOpts.scriptsDir, "scripts-dir", "d", "", "directory of script markdown files")
	f.StringVarP(&composeOpts.output, "output", "o", "", "output directory or file path")
	f.StringVarP(&composeOpts.mode, "mode", "m", "overlay", "composition mode (overlay, pip, split, greenscreen)")
	f.BoolVar(&composeOpts.sync, "sync", false, "resolve keyword overlay timing with whisper")
	f.StringVar(&composeOpts.syncModel, "sync-model", "base", "whisper model (tiny, base, small, medium, large)")
	f.BoolVar(&composeOpts.subtitles, "subtitles", false, "burn in karaoke subtitles")
	f.IntVar(&composeOpts.subtitleFontSize, "subtitle-font-size", 48, "subtitle font size")
	f.StringVar(&composeOpts.music, "music", "", "background music file")
	f.Float64Var(&composeOpts.musicVolume, "music-volume", 0.15, "music volume (0-1)")
	f.Float64Var(&composeOpts.musicFadeOut, "music-fade-out", 2.0, "music fade-out seconds")
	f.StringVar(&composeOpts.headPosition, "head-position", "top-right", "head corner for pip mode")
	f.Float64Var(&composeOpts.headScale, "head-scale", 0.25, "head size as a fraction of output width")
	f.Float64Var(&composeOpts.splitRatio, "split-ratio", 0.5, "avatar share of the frame in split mode")
	f.StringVar(&composeOpts.avatarSide, "avatar-side", "left", "avatar side in split mode (left, right)")
	f.Float64Var(&composeOpts.gsAvatarScale, "gs-avatar-scale", 0.8, "avatar scale in greenscreen mode")
	f.StringVar(&composeOpts.gsAvatarPosition, "gs-avatar-position", "bottom-right", "avatar corner in greenscreen mode")
	f.BoolVar(&composeOpts.dryRun, "dry-run", false, "show the timeline and command without rendering")
	f.BoolVar(&composeOpts.keepWork, "keep-work", false, "keep the per-run work directory")
	_ = composeCmd.MarkFlagRequired("script")
}

// applyComposeOverrides layers explicitly passed flags over the loaded
// config and re-validates the result.
func applyComposeOverrides(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()

	if f.Changed("screencasts") {
		cfg.Paths.Screencasts = composeOpts.screencasts
	}
	if f.Changed("sync-model") {
		cfg.Sync.Model = composeOpts.syncModel
	}
	if f.Changed("head-position") {
		pos, err := config.ParsePosition(composeOpts.headPosition)
		if err != nil {
			return err
		}
		cfg.Composition.Pip.HeadPosition = pos
	}
	if f.Changed("head-scale") {
		cfg.Composition.Pip.HeadScale = composeOpts.headScale
	}
	if f.Changed("split-ratio") {
		cfg.Composition.Split.Ratio = composeOpts.splitRatio
	}
	if f.Changed("avatar-side") {
		cfg.Composition.Split.AvatarSide = composeOpts.avatarSide
	}
	if f.Changed("gs-avatar-scale") {
		cfg.Composition.Greenscreen.AvatarScale = composeOpts.gsAvatarScale
	}
	if f.Changed("gs-avatar-position") {
		pos, err := config.ParsePosition(composeOpts.gsAvatarPosition)
		if err != nil {
			return err
		}
		cfg.Composition.Greenscreen.AvatarPosition = pos
	}
	if composeOpts.music != "" {
		cfg.Music.Enabled = true
		cfg.Music.File = composeOpts.music
	}
	if f.Changed("music-volume") {
		cfg.Music.Volume = composeOpts.musicVolume
	}
	if f.Changed("music-fade-out") {
		cfg.Music.FadeOut = composeOpts.musicFadeOut
	}
	if composeOpts.subtitles {
		cfg.Subtitles.Enabled = true
	}
	if f.Changed("subtitle-font-size") {
		cfg.Subtitles.FontSize = composeOpts.subtitleFontSize
	}

	return cfg.Validate()
}

// forceMode overrides every overlay's composition mode, mirroring the
// --mode flag onto scripts that declare their own per-tag modes.
func forceMode(sc *script.Script, mode script.Mode) {
	for i := range sc.Segments {
		for j := range sc.Segments[i].Overlays {
			sc.Segments[i].Overlays[j].Mode = mode
		}
	}
}

// loadScript resolves a script reference: a path to a markdown file, or
// an ID searched in the scripts directory.
func loadScript(cfg *config.Config, ref, scriptsDir string) (*script.Script, error) {
	if ref == "" {
		return nil, config.Errorf("script", "no script given")
	}
	if scriptsDir == "" {
		scriptsDir = cfg.Paths.Scripts
	}

	if strings.EqualFold(filepath.Ext(ref), ".md") {
		if util.FileExists(ref) {
			scripts, err := script.ParseFile(ref)
			if err != nil {
				return nil, err
			}
			if len(scripts) == 0 {
				return nil, config.Errorf("script", "no scripts found in %s", ref)
			}
			return scripts[0], nil
		}
	}

	scripts, err := script.ParseDir(scriptsDir)
	if err != nil {
		return nil, err
	}
	if s := script.FindByID(scripts, ref); s != nil {
		return s, nil
	}

	var available []string
	for _, s := range scripts {
		available = append(available, s.ID)
	}
	return nil, config.Errorf("script", "script %q not found in %s (available: %s)",
		ref, scriptsDir, strings.Join(available, ", "))
}

// resolveOutputPath maps --output to a file path: directories get
// <script id>.mp4 appended, anything else is used as given. Empty
// means the configured output directory.
func resolveOutputPath(out, scriptID string) string {
	if out == "" {
		return ""
	}
	if fi, err := os.Stat(out); err == nil && fi.IsDir() {
		return filepath.Join(out, scriptID+".mp4")
	}
	return out
}

var batchOpts struct {
	scriptsDir string
	avatarDir  string
	output     string
	jobs       int
	sync       bool
	dryRun     bool
	keepWork   bool
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Compose every script in a directory",
	Long: `Compose every script in a directory against a shared avatar pool.

Avatar files pair with scripts by ID prefix (A1_seg1.mp4 -> script A1).
Scripts without matching clips are skipped; failures do not stop the
batch.`,
	Example: `  ugckit batch -d ./scripts/ --avatar-dir ./avatars/ --jobs 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		scriptsDir := batchOpts.scriptsDir
		if scriptsDir == "" {
			scriptsDir = cfg.Paths.Scripts
		}
		scripts, err := script.ParseDir(scriptsDir)
		if err != nil {
			return err
		}
		if len(scripts) == 0 {
			return config.Errorf("scripts", "no scripts found in %s", scriptsDir)
		}

		pipe, err := pipeline.New(log.Logger, cfg)
		if err != nil {
			return err
		}
		defer pipe.Close()

		results, err := pipe.Batch(cmd.Context(), scripts, batchOpts.avatarDir, batchOpts.output, pipeline.BatchOptions{
			Jobs:     batchOpts.jobs,
			Sync:     batchOpts.sync,
			DryRun:   batchOpts.dryRun,
			KeepWork: batchOpts.keepWork,
		})
		if err != nil {
			return err
		}

		ok, failed := 0, 0
		for _, r := range results {
			switch {
			case r.Skipped:
				fmt.Printf("  [%s] SKIP - no matching avatar clips\n", r.ScriptID)
			case r.Err != nil:
				fmt.Printf("  [%s] FAIL: %v\n", r.ScriptID, r.Err)
				failed++
			case batchOpts.dryRun:
				fmt.Println(r.Result.Timeline.Format())
				fmt.Println("FFmpeg command:")
				fmt.Println(r.Result.Command.String())
				fmt.Println()
				ok++
			default:
				fmt.Printf("  [%s] OK -> %s\n", r.ScriptID, r.Output)
				ok++
			}
		}
		fmt.Printf("\nBatch complete: %d ok, %d errors\n", ok, failed)
		return nil
	},
}

func init() {
	f := batchCmd.Flags()
	f.StringVarP(&batchOpts.scriptsDir, "scripts-dir", "d", "", "directory of script markdown files")
	f.StringVar(&batchOpts.avatarDir, "avatar-dir", "", "directory of avatar .mp4 files (matched by script ID prefix)")
	f.StringVarP(&batchOpts.output, "output", "o", "", "output directory")
	f.IntVar(&batchOpts.jobs, "jobs", 1, "how many scripts to compose concurrently")
	f.BoolVar(&batchOpts.sync, "sync", false, "resolve keyword overlay timing with whisper")
	f.BoolVar(&batchOpts.dryRun, "dry-run", false, "show timelines and commands without rendering")
	f.BoolVar(&batchOpts.keepWork, "keep-work", false, "keep per-run work directories")
	_ = batchCmd.MarkFlagRequired("avatar-dir")
}

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "Inspect available scripts",
}

var scriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all scripts in the scripts directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		dir, _ := cmd.Flags().GetString("scripts-dir")
		if dir == "" {
			dir = cfg.Paths.Scripts
		}
		scripts, err := script.ParseDir(dir)
		if err != nil {
			return err
		}
		if len(scripts) == 0 {
			fmt.Println("No scripts found")
			return nil
		}

		fmt.Printf("Found %d scripts:\n\n", len(scripts))
		for _, s := range scripts {
			title := s.Title
			if len(title) > 40 {
				title = title[:40]
			}
			fmt.Printf("  %-15s | %-40s | %d segments | ~%.0fs\n",
				s.ID, title, len(s.Segments), s.EstimatedDuration(cfg.Sync.WordsPerSecond))
		}
		return nil
	},
}

var scriptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a script's segments and overlays",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		dir, _ := cmd.Flags().GetString("scripts-dir")
		sc, err := loadScript(cfg, args[0], dir)
		if err != nil {
			return err
		}

		fmt.Printf("Script: %s\n", sc.ID)
		fmt.Printf("Title: %s\n", sc.Title)
		if sc.Persona != "" {
			fmt.Printf("Persona: %s\n", sc.Persona)
		}
		fmt.Printf("Total duration: ~%.1fs\n\n", sc.EstimatedDuration(cfg.Sync.WordsPerSecond))
		fmt.Println("Segments:")

		for _, seg := range sc.Segments {
			text := seg.Text
			suffix := ""
			if len(text) > 60 {
				text, suffix = text[:60], "..."
			}
			fmt.Printf("  [%d] (%.1fs) %s%s\n", seg.Index, seg.EstimatedDuration(cfg.Sync.WordsPerSecond), text, suffix)

			for _, ov := range seg.Overlays {
				modeStr := ""
				if ov.Mode != "" && ov.Mode != script.ModeOverlay {
					modeStr = fmt.Sprintf(" [%s]", ov.Mode)
				}
				if ov.Keyword() {
					fmt.Printf("       └─ screencast: %s @ word:%q-word:%q%s\n", ov.File, ov.StartPhrase, ov.EndPhrase, modeStr)
				} else {
					fmt.Printf("       └─ screencast: %s @ %gs-%gs%s\n", ov.File, ov.Start, ov.End, modeStr)
				}
			}
		}
		return nil
	},
}

func init() {
	scriptsListCmd.Flags().StringP("scripts-dir", "d", "", "directory of script markdown files")
	scriptsShowCmd.Flags().StringP("scripts-dir", "d", "", "directory of script markdown files")
	scriptsCmd.AddCommand(scriptsListCmd)
	scriptsCmd.AddCommand(scriptsShowCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default ugckit.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "ugckit.yaml"
		force, _ := cmd.Flags().GetBool("force")

		if util.FileExists(path) && !force {
			return config.Errorf("config", "%s already exists (use --force to overwrite)", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

var screencastsCmd = &cobra.Command{
	Use:   "screencasts",
	Short: "List available screencast files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		lib := screencast.NewLibrary(cfg.Paths.Screencasts)
		names, err := lib.List()
		if err != nil {
			return fmt.Errorf("reading screencast directory: %w", err)
		}
		if len(names) == 0 {
			fmt.Printf("No screencasts in %s\n", lib.Dir())
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(screencastsCmd)
}
