package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Error reports an unusable configuration value. Compositions that hit one
// abort; a batch keeps going with its remaining scripts.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Errorf builds an Error for the given field.
func Errorf(field, format string, args ...interface{}) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Position is a corner anchor for overlaid layers.
type Position string

const (
	TopLeft     Position = "top-left"
	TopRight    Position = "top-right"
	BottomLeft  Position = "bottom-left"
	BottomRight Position = "bottom-right"
)

// ParsePosition validates a position string.
func ParsePosition(s string) (Position, error) {
	switch Position(s) {
	case TopLeft, TopRight, BottomLeft, BottomRight:
		return Position(s), nil
	}
	return "", Errorf("position", "unrecognized value %q (want top-left, top-right, bottom-left or bottom-right)", s)
}

// Resolution is an output frame size, read from "1080x1920" or [1080, 1920].
type Resolution struct {
	W int
	H int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.W, r.H)
}

func (r Resolution) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

func (r *Resolution) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parts := strings.SplitN(value.Value, "x", 2)
		if len(parts) != 2 {
			return Errorf("output.resolution", "want WxH, got %q", value.Value)
		}
		w, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		h, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil {
			return Errorf("output.resolution", "want WxH, got %q", value.Value)
		}
		r.W, r.H = w, h
		return nil
	case yaml.SequenceNode:
		var pair [2]int
		if err := value.Decode(&pair); err != nil {
			return Errorf("output.resolution", "want [W, H]: %v", err)
		}
		r.W, r.H = pair[0], pair[1]
		return nil
	}
	return Errorf("output.resolution", "unsupported yaml node")
}

// Config holds all application configuration
type Config struct {
	Composition CompositionConfig `yaml:"composition"`
	Output      OutputConfig      `yaml:"output"`
	Audio       AudioConfig       `yaml:"audio"`
	Subtitles   SubtitleConfig    `yaml:"subtitles"`
	Music       MusicConfig       `yaml:"music"`
	Sync        SyncConfig        `yaml:"sync"`
	Paths       PathsConfig       `yaml:"paths"`
	Tools       ToolsConfig       `yaml:"tools"`
}

// CompositionConfig carries per-mode geometry knobs.
type CompositionConfig struct {
	Overlay     OverlayConfig     `yaml:"overlay"`
	Pip         PipConfig         `yaml:"pip"`
	Split       SplitConfig       `yaml:"split"`
	Greenscreen GreenscreenConfig `yaml:"greenscreen"`
}

type OverlayConfig struct {
	Scale    float64  `yaml:"scale"`
	Position Position `yaml:"position"`
	Margin   int      `yaml:"margin"`
}

type PipConfig struct {
	HeadScale    float64  `yaml:"head_scale"`
	HeadPosition Position `yaml:"head_position"`
	HeadMargin   int      `yaml:"head_margin"`
}

type SplitConfig struct {
	Ratio      float64 `yaml:"ratio"`
	AvatarSide string  `yaml:"avatar_side"`
}

type GreenscreenConfig struct {
	AvatarScale    float64  `yaml:"avatar_scale"`
	AvatarPosition Position `yaml:"avatar_position"`
	AvatarMargin   int      `yaml:"avatar_margin"`
}

type OutputConfig struct {
	Resolution Resolution `yaml:"resolution"`
	FPS        int        `yaml:"fps"`
	Codec      string     `yaml:"codec"`
	Preset     string     `yaml:"preset"`
	CRF        int        `yaml:"crf"`
}

type AudioConfig struct {
	Normalize      bool   `yaml:"normalize"`
	TargetLoudness int    `yaml:"target_loudness"`
	Codec          string `yaml:"codec"`
	Bitrate        string `yaml:"bitrate"`
}

type SubtitleConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Font            string `yaml:"font"`
	FontSize        int    `yaml:"font_size"`
	MaxWordsPerLine int    `yaml:"max_words_per_line"`
	HighlightColor  string `yaml:"highlight_color"`
	OutlineWidth    int    `yaml:"outline_width"`
	MarginV         int    `yaml:"margin_v"`
}

type MusicConfig struct {
	Enabled bool    `yaml:"enabled"`
	File    string  `yaml:"file"`
	Volume  float64 `yaml:"volume"`
	FadeOut float64 `yaml:"fade_out"`
	Loop    bool    `yaml:"loop"`
}

type SyncConfig struct {
	Model          string  `yaml:"model"`
	WordsPerSecond float64 `yaml:"words_per_second"`
}

type PathsConfig struct {
	Scripts     string `yaml:"scripts"`
	Screencasts string `yaml:"screencasts"`
	Output      string `yaml:"output"`
	Work        string `yaml:"work"`
}

type ToolsConfig struct {
	FFmpeg       string `yaml:"ffmpeg"`
	FFprobe      string `yaml:"ffprobe"`
	Whisper      string `yaml:"whisper"`
	FaceDetector string `yaml:"face_detector"`
	FaceModel    string `yaml:"face_model"`
	Matting      string `yaml:"matting"`
}

// Load reads configuration from file (or the search path) on top of
// defaults and validates the result once. Downstream code never re-checks.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks every field once. CLI flag overrides re-run it.
func (c *Config) Validate() error {
	comp := &c.Composition
	if comp.Overlay.Scale <= 0 || comp.Overlay.Scale > 1 {
		return Errorf("composition.overlay.scale", "must be in (0, 1], got %v", comp.Overlay.Scale)
	}
	if comp.Pip.HeadScale <= 0 || comp.Pip.HeadScale > 1 {
		return Errorf("composition.pip.head_scale", "must be in (0, 1], got %v", comp.Pip.HeadScale)
	}
	if comp.Greenscreen.AvatarScale <= 0 || comp.Greenscreen.AvatarScale > 1 {
		return Errorf("composition.greenscreen.avatar_scale", "must be in (0, 1], got %v", comp.Greenscreen.AvatarScale)
	}
	if comp.Split.Ratio < 0.1 || comp.Split.Ratio > 0.9 {
		return Errorf("composition.split.ratio", "must be in [0.1, 0.9], got %v", comp.Split.Ratio)
	}
	if comp.Split.AvatarSide != "left" && comp.Split.AvatarSide != "right" {
		return Errorf("composition.split.avatar_side", "want left or right, got %q", comp.Split.AvatarSide)
	}
	if comp.Overlay.Margin < 0 || comp.Pip.HeadMargin < 0 || comp.Greenscreen.AvatarMargin < 0 {
		return Errorf("composition", "margins must not be negative")
	}
	for field, pos := range map[string]Position{
		"composition.overlay.position":            comp.Overlay.Position,
		"composition.pip.head_position":           comp.Pip.HeadPosition,
		"composition.greenscreen.avatar_position": comp.Greenscreen.AvatarPosition,
	} {
		if _, err := ParsePosition(string(pos)); err != nil {
			return Errorf(field, "unrecognized position %q", pos)
		}
	}

	if c.Output.Resolution.W <= 0 || c.Output.Resolution.H <= 0 {
		return Errorf("output.resolution", "must be positive, got %s", c.Output.Resolution)
	}
	if c.Output.FPS <= 0 || c.Output.FPS > 240 {
		return Errorf("output.fps", "must be in (0, 240], got %d", c.Output.FPS)
	}
	if c.Output.CRF < 0 || c.Output.CRF > 51 {
		return Errorf("output.crf", "must be in [0, 51], got %d", c.Output.CRF)
	}
	if c.Output.Codec == "" {
		return Errorf("output.codec", "must not be empty")
	}

	if c.Audio.TargetLoudness < -70 || c.Audio.TargetLoudness > -5 {
		return Errorf("audio.target_loudness", "must be in [-70, -5] LUFS, got %d", c.Audio.TargetLoudness)
	}

	if c.Subtitles.FontSize <= 0 {
		return Errorf("subtitles.font_size", "must be positive, got %d", c.Subtitles.FontSize)
	}
	if c.Subtitles.MaxWordsPerLine <= 0 {
		return Errorf("subtitles.max_words_per_line", "must be positive, got %d", c.Subtitles.MaxWordsPerLine)
	}

	if c.Music.Volume < 0 || c.Music.Volume > 1 {
		return Errorf("music.volume", "must be in [0, 1], got %v", c.Music.Volume)
	}
	if c.Music.FadeOut < 0 {
		return Errorf("music.fade_out", "must not be negative, got %v", c.Music.FadeOut)
	}
	if c.Music.Enabled && c.Music.File == "" {
		return Errorf("music.file", "required when music is enabled")
	}

	if c.Sync.WordsPerSecond <= 0 {
		return Errorf("sync.words_per_second", "must be positive, got %v", c.Sync.WordsPerSecond)
	}
	if c.Sync.Model == "" {
		return Errorf("sync.model", "must not be empty")
	}

	return nil
}

// Default returns the fully-populated default configuration.
func Default() *Config {
	return &Config{
		Composition: CompositionConfig{
			Overlay: OverlayConfig{
				Scale:    0.4,
				Position: BottomRight,
				Margin:   50,
			},
			Pip: PipConfig{
				HeadScale:    0.25,
				HeadPosition: TopRight,
				HeadMargin:   30,
			},
			Split: SplitConfig{
				Ratio:      0.5,
				AvatarSide: "left",
			},
			Greenscreen: GreenscreenConfig{
				AvatarScale:    0.8,
				AvatarPosition: BottomRight,
				AvatarMargin:   40,
			},
		},
		Output: OutputConfig{
			Resolution: Resolution{W: 1080, H: 1920},
			FPS:        30,
			Codec:      "libx264",
			Preset:     "medium",
			CRF:        23,
		},
		Audio: AudioConfig{
			Normalize:      true,
			TargetLoudness: -14,
			Codec:          "aac",
			Bitrate:        "192k",
		},
		Subtitles: SubtitleConfig{
			Enabled:         false,
			Font:            "Arial",
			FontSize:        48,
			MaxWordsPerLine: 4,
			HighlightColor:  "&H0000FFFF",
			OutlineWidth:    3,
			MarginV:         80,
		},
		Music: MusicConfig{
			Enabled: false,
			Volume:  0.15,
			FadeOut: 2.0,
			Loop:    true,
		},
		Sync: SyncConfig{
			Model:          "base",
			WordsPerSecond: 3.0,
		},
		Paths: PathsConfig{
			Scripts:     "./assets/scripts",
			Screencasts: "./assets/screencasts",
			Output:      "./assets/output",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./ugckit.yaml",
		"./ugckit.yml",
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "ugckit", "config.yaml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		candidates = append(candidates, filepath.Join(home, ".config", "ugckit", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
