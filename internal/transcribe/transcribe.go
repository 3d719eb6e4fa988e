package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ugckit/ugckit/internal/ffmpeg"
)

// Word is a single spoken word with its timing inside the source clip.
// Text is kept exactly as the recognizer emitted it, including any
// leading whitespace.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Transcript holds word-level timing for one media file.
type Transcript struct {
	Language string
	Words    []Word
}

// Transcriber produces word-level transcripts from media files.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) (*Transcript, error)
}

// Whisper transcribes media by extracting a mono WAV track and running
// the openai-whisper CLI on it with word timestamps enabled.
type Whisper struct {
	logger zerolog.Logger
	exec   *ffmpeg.Executor
	binary string
	model  string
}

// NewWhisper creates a Whisper transcriber. An empty binary falls back
// to "whisper" on PATH. The binary is resolved lazily so compositions
// that never use speech timing do not require it installed.
func NewWhisper(logger zerolog.Logger, exec *ffmpeg.Executor, binary, model string) *Whisper {
	return &Whisper{
		logger: logger.With().Str("component", "transcribe").Logger(),
		exec:   exec,
		binary: binary,
		model:  model,
	}
}

// Transcribe extracts the audio track of mediaPath and returns per-word
// timestamps relative to the start of the clip.
func (w *Whisper) Transcribe(ctx context.Context, mediaPath string) (*Transcript, error) {
	bin := w.binary
	if bin == "" {
		bin = "whisper"
	}
	binPath, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("whisper not found in PATH (install with: pip install openai-whisper): %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "ugckit-whisper-")
	if err != nil {
		return nil, fmt.Errorf("creating whisper work dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	wavPath := filepath.Join(tmpDir, "audio.wav")
	if err := w.exec.ExtractAudio(ctx, mediaPath, wavPath, ffmpeg.DefaultWhisperFormat()); err != nil {
		return nil, fmt.Errorf("extracting audio for transcription: %w", err)
	}

	w.logger.Debug().
		Str("file", mediaPath).
		Str("model", w.model).
		Msg("transcribing audio")

	cmd := exec.CommandContext(ctx, binPath,
		wavPath,
		"--model", w.model,
		"--output_format", "json",
		"--output_dir", tmpDir,
		"--word_timestamps", "True",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper failed: %w\n%s", err, tailOf(string(out), 400))
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "audio.json"))
	if err != nil {
		return nil, fmt.Errorf("reading whisper output: %w", err)
	}

	transcript, err := parseWhisperJSON(data)
	if err != nil {
		return nil, err
	}

	w.logger.Debug().
		Str("file", mediaPath).
		Int("words", len(transcript.Words)).
		Str("language", transcript.Language).
		Msg("transcription complete")

	return transcript, nil
}

// whisperResult mirrors the openai-whisper JSON output shape.
type whisperResult struct {
	Language string `json:"language"`
	Segments []struct {
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

func parseWhisperJSON(data []byte) (*Transcript, error) {
	var result whisperResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing whisper output: %w", err)
	}

	transcript := &Transcript{Language: result.Language}
	for _, seg := range result.Segments {
		for _, word := range seg.Words {
			transcript.Words = append(transcript.Words, Word{
				Text:  word.Word,
				Start: word.Start,
				End:   word.End,
			})
		}
	}
	return transcript, nil
}

func tailOf(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
