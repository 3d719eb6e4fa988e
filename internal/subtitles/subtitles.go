// Package subtitles turns word-level transcripts into ASS subtitle
// tracks with karaoke-style per-word highlight timing.
package subtitles

import (
	"fmt"
	"os"
	"strings"

	"github.com/ugckit/ugckit/internal/config"
	"github.com/ugckit/ugckit/internal/transcribe"
)

// Line is one subtitle display line. Word times are absolute seconds in
// the composed video.
type Line struct {
	Words []transcribe.Word
	Start float64
	End   float64
	Text  string
}

// GroupWords chunks a transcript into display lines of at most maxWords
// words each, preserving order. Every word lands in exactly one line
// and consecutive lines share their boundary instant, so the track has
// no gaps.
func GroupWords(words []transcribe.Word, maxWords int) []Line {
	if len(words) == 0 {
		return nil
	}
	if maxWords < 1 {
		maxWords = 1
	}

	var lines []Line
	for i := 0; i < len(words); i += maxWords {
		end := i + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunk := words[i:end]

		display := make([]string, len(chunk))
		for j, w := range chunk {
			display[j] = strings.TrimSpace(w.Text)
		}

		lines = append(lines, Line{
			Words: chunk,
			Start: chunk[0].Start,
			End:   chunk[len(chunk)-1].End,
			Text:  strings.Join(display, " "),
		})
	}
	return lines
}

// formatTime renders seconds as an ASS timestamp, H:MM:SS.cc.
func formatTime(seconds float64) string {
	h := int(seconds / 3600)
	m := int(seconds/60) % 60
	s := seconds - float64(h)*3600 - float64(m)*60
	return fmt.Sprintf("%d:%02d:%05.2f", h, m, s)
}

// WriteASS writes the subtitle track to path. Each line becomes one
// dialogue event whose words carry progressive-highlight karaoke tags
// timed from the transcript.
func WriteASS(lines []Line, cfg config.SubtitleConfig, resolution config.Resolution, path string) error {
	var b strings.Builder

	fmt.Fprintf(&b, `[Script Info]
Title: UGCKit Subtitles
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
WrapStyle: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,%s,%d,&H00FFFFFF,%s,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,%d,1,2,20,20,%d,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`, resolution.W, resolution.H, cfg.Font, cfg.FontSize, cfg.HighlightColor, cfg.OutlineWidth, cfg.MarginV)

	for _, line := range lines {
		var text strings.Builder
		for j, word := range line.Words {
			durationCs := int((word.End - word.Start) * 100)
			display := strings.TrimSpace(word.Text)
			if j > 0 {
				display = " " + display
			}
			fmt.Fprintf(&text, `{\kf%d}%s`, durationCs, display)
		}
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatTime(line.Start), formatTime(line.End), text.String())
	}

	return os.WriteFile(path, []byte(b.String()), 0644)
}
