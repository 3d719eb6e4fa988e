package compose

import (
	"fmt"
	"strings"
)

// wrapPostProcessing layers the subtitle burn and the music mix onto a
// finished mode graph. The graph's terminal [vout]/[aout] labels are
// renamed once and the extra stages appended after them, so the mode
// builders never need to know whether post-processing applies.
func (c *Composer) wrapPostProcessing(filter, subtitleFile string, musicIndex int, total float64) string {
	if subtitleFile != "" {
		filter = strings.Replace(filter, "[vout]", "[vout_pre]", 1)
		filter += fmt.Sprintf(";[vout_pre]ass='%s'[vout]", escapeFilterPath(subtitleFile))
	}

	if musicIndex >= 0 {
		filter = strings.Replace(filter, "[aout]", "[aout_pre]", 1)

		fade := c.cfg.Music.FadeOut
		fadeStart := total - fade
		if fadeStart < 0 {
			fadeStart = 0
		}

		if c.cfg.Music.Loop {
			filter += fmt.Sprintf(";[%d:a]aloop=loop=-1:size=2e+09,atrim=0:%.2f,asetpts=PTS-STARTPTS[music_loop]", musicIndex, total)
		} else {
			filter += fmt.Sprintf(";[%d:a]atrim=0:%.2f,asetpts=PTS-STARTPTS[music_loop]", musicIndex, total)
		}
		filter += fmt.Sprintf(";[music_loop]afade=t=out:st=%.2f:d=%.2f[music_faded]", fadeStart, fade)
		filter += fmt.Sprintf(";[aout_pre][music_faded]amix=inputs=2:duration=first:weights=1 %.2f[aout]", c.cfg.Music.Volume)
	}

	return filter
}

// escapeFilterPath escapes a path for use inside a quoted filter
// option value. Backslashes first, then the option separator.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, `\`, `\\`)
	return strings.ReplaceAll(path, ":", `\:`)
}
