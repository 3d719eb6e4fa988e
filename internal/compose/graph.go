package compose

import (
	"fmt"
	"strings"

	"github.com/ugckit/ugckit/internal/script"
	"github.com/ugckit/ugckit/internal/timeline"
)

// graphBuilder accumulates filter stages joined by ";".
type graphBuilder struct {
	stages []string
}

func (g *graphBuilder) addf(format string, args ...interface{}) {
	g.stages = append(g.stages, fmt.Sprintf(format, args...))
}

func (g *graphBuilder) String() string {
	return strings.Join(g.stages, ";")
}

// DetectMode picks the graph variant for a timeline from its screencast
// entries. Greenscreen wins over pip over split over overlay when a
// timeline mixes modes.
func DetectMode(tl *timeline.Timeline) script.Mode {
	present := make(map[script.Mode]bool)
	for _, e := range tl.Layer(timeline.KindScreencast) {
		present[e.Mode] = true
	}
	for _, m := range []script.Mode{script.ModeGreenscreen, script.ModePip, script.ModeSplit} {
		if present[m] {
			return m
		}
	}
	return script.ModeOverlay
}

// concatBase scales every avatar input to the output resolution and
// concatenates them into [base]. splitSrc substitutes a pre-split label
// for an avatar's raw input stream when that input feeds other chains.
func (c *Composer) concatBase(g *graphBuilder, numAvatars int, splitSrc map[int]string) {
	w := c.cfg.Output.Resolution.W
	h := c.cfg.Output.Resolution.H

	for i := 0; i < numAvatars; i++ {
		src := fmt.Sprintf("[%d:v]", i)
		if label, ok := splitSrc[i]; ok {
			src = label
		}
		g.addf("%sscale=%d:%d,setsar=1[av%d]", src, w, h, i)
	}

	if numAvatars > 1 {
		var labels strings.Builder
		for i := 0; i < numAvatars; i++ {
			fmt.Fprintf(&labels, "[av%d]", i)
		}
		g.addf("%sconcat=n=%d:v=1:a=0[base]", labels.String(), numAvatars)
	} else {
		g.addf("[av0]copy[base]")
	}
}

// audioPipeline concatenates the avatar audio tracks into [audio],
// substituting silence for clips without an audio stream.
func (c *Composer) audioPipeline(g *graphBuilder, avatars []timeline.Entry, presence []bool, total float64) {
	var labels strings.Builder
	for i := range avatars {
		if presence[i] {
			g.addf("[%d:a]aresample=48000,asetpts=PTS-STARTPTS[a%d]", i, i)
		} else {
			duration := avatars[i].End - avatars[i].Start
			g.addf("anullsrc=r=48000:cl=stereo,atrim=0:%.2f,asetpts=PTS-STARTPTS[a%d]", duration, i)
		}
		fmt.Fprintf(&labels, "[a%d]", i)
	}

	switch {
	case len(avatars) > 1:
		g.addf("%sconcat=n=%d:v=0:a=1[audio]", labels.String(), len(avatars))
	case len(avatars) == 1:
		g.addf("[a0]anull[audio]")
	default:
		g.addf("anullsrc=r=48000:cl=stereo,atrim=0:%.2f[audio]", total)
	}
}

// normalizeOut finishes the audio chain, loudness-normalizing to the
// configured target when enabled.
func (c *Composer) normalizeOut(g *graphBuilder) {
	if c.cfg.Audio.Normalize {
		g.addf("[audio]loudnorm=I=%d:TP=-1.5:LRA=11[aout]", c.cfg.Audio.TargetLoudness)
	} else {
		g.addf("[audio]anull[aout]")
	}
}

func enableWindow(e timeline.Entry) string {
	return fmt.Sprintf("between(t,%.2f,%.2f)", e.Start, e.End)
}

func avatarIndexBySegment(avatars []timeline.Entry, segment int) (int, bool) {
	for i, a := range avatars {
		if a.Segment == segment {
			return i, true
		}
	}
	return 0, false
}

// popSrc takes the next reserved source label for an avatar index.
func popSrc(srcs map[int][]string, ai int) string {
	q := srcs[ai]
	if len(q) == 0 {
		return ""
	}
	srcs[ai] = q[1:]
	return q[0]
}

// buildOverlay corners each screencast over the avatar base, gated to
// its resolved time window.
func (c *Composer) buildOverlay(tl *timeline.Timeline, presence []bool) (string, error) {
	g := &graphBuilder{}
	avatars := tl.Layer(timeline.KindAvatar)
	casts := tl.Layer(timeline.KindScreencast)

	c.concatBase(g, len(avatars), nil)
	c.audioPipeline(g, avatars, presence, tl.TotalDuration)

	ovCfg := c.cfg.Composition.Overlay
	scaleW := int(float64(c.cfg.Output.Resolution.W) * ovCfg.Scale)
	x, y, err := OverlayCoords(ovCfg.Position, ovCfg.Margin, "w", "h")
	if err != nil {
		return "", err
	}

	base := "base"
	for i, sc := range casts {
		scIdx := len(avatars) + i
		g.addf("[%d:v]scale=%d:-1[sc%d]", scIdx, scaleW, i)
		next := fmt.Sprintf("out%d", i)
		g.addf("[%s][sc%d]overlay=x=%s:y=%s:enable='%s'[%s]", base, i, x, y, enableWindow(sc), next)
		base = next
	}

	if len(casts) > 0 {
		g.addf("[%s]null[vout]", base)
	} else {
		g.addf("[base]null[vout]")
	}
	c.normalizeOut(g)
	return g.String(), nil
}

// buildPip puts pip screencasts fullscreen with the head cutout in a
// corner; overlay-mode screencasts in the same timeline keep their
// corner placement.
func (c *Composer) buildPip(tl *timeline.Timeline, presence []bool, headIndex map[int]int) (string, error) {
	g := &graphBuilder{}
	avatars := tl.Layer(timeline.KindAvatar)
	casts := tl.Layer(timeline.KindScreencast)
	w := c.cfg.Output.Resolution.W
	h := c.cfg.Output.Resolution.H

	c.concatBase(g, len(avatars), nil)
	c.audioPipeline(g, avatars, presence, tl.TotalDuration)

	// A head input feeding several pip stages has to be split first.
	headUses := make(map[int]int)
	for _, sc := range casts {
		if sc.Mode != script.ModePip {
			continue
		}
		if ai, ok := avatarIndexBySegment(avatars, sc.Segment); ok {
			if _, exists := headIndex[ai]; exists {
				headUses[ai]++
			}
		}
	}
	headSrc := make(map[int][]string)
	for ai := 0; ai < len(avatars); ai++ {
		n := headUses[ai]
		if n == 0 {
			continue
		}
		if n == 1 {
			headSrc[ai] = []string{fmt.Sprintf("[%d:v]", headIndex[ai])}
			continue
		}
		labels := make([]string, n)
		for j := range labels {
			labels[j] = fmt.Sprintf("[hd%d_%d]", ai, j)
		}
		g.addf("[%d:v]split=%d%s", headIndex[ai], n, strings.Join(labels, ""))
		headSrc[ai] = labels
	}

	base := "base"

	ovCfg := c.cfg.Composition.Overlay
	ovScaleW := int(float64(w) * ovCfg.Scale)
	ox, oy, err := OverlayCoords(ovCfg.Position, ovCfg.Margin, "w", "h")
	if err != nil {
		return "", err
	}
	oi := 0
	for j, sc := range casts {
		if sc.Mode == script.ModePip {
			continue
		}
		scIdx := len(avatars) + j
		g.addf("[%d:v]scale=%d:-1[osc%d]", scIdx, ovScaleW, oi)
		next := fmt.Sprintf("ov%d", oi)
		g.addf("[%s][osc%d]overlay=x=%s:y=%s:enable='%s'[%s]", base, oi, ox, oy, enableWindow(sc), next)
		base = next
		oi++
	}

	pipCfg := c.cfg.Composition.Pip
	hx, hy, err := OverlayCoords(pipCfg.HeadPosition, pipCfg.HeadMargin, "w", "h")
	if err != nil {
		return "", err
	}
	pi := 0
	for j, sc := range casts {
		if sc.Mode != script.ModePip {
			continue
		}
		scIdx := len(avatars) + j
		enable := enableWindow(sc)

		g.addf("[%d:v]scale=%d:%d,setsar=1[psc%d]", scIdx, w, h, pi)
		next := fmt.Sprintf("pip_sc%d", pi)
		g.addf("[%s][psc%d]overlay=0:0:enable='%s'[%s]", base, pi, enable, next)
		base = next

		if ai, ok := avatarIndexBySegment(avatars, sc.Segment); ok {
			if src := popSrc(headSrc, ai); src != "" {
				next = fmt.Sprintf("pip_h%d", pi)
				g.addf("[%s]%soverlay=x=%s:y=%s:enable='%s'[%s]", base, src, hx, hy, enable, next)
				base = next
			}
		}
		pi++
	}

	g.addf("[%s]null[vout]", base)
	c.normalizeOut(g)
	return g.String(), nil
}

// buildSplit crops the avatar to one side and stacks the screencast on
// the other, switching to the stacked frame only inside each overlay
// window.
func (c *Composer) buildSplit(tl *timeline.Timeline, presence []bool) (string, error) {
	g := &graphBuilder{}
	avatars := tl.Layer(timeline.KindAvatar)
	casts := tl.Layer(timeline.KindScreencast)
	w := c.cfg.Output.Resolution.W
	h := c.cfg.Output.Resolution.H

	splitCfg := c.cfg.Composition.Split
	avatarW := int(float64(w) * splitCfg.Ratio)
	scW := w - avatarW

	c.concatBase(g, len(avatars), nil)
	c.audioPipeline(g, avatars, presence, tl.TotalDuration)

	base := "base"
	for i, sc := range casts {
		scIdx := len(avatars) + i
		cropLabel := fmt.Sprintf("%s_crop%d", base, i)
		ovLabel := fmt.Sprintf("%s_ov%d", base, i)
		g.addf("[%s]split=2[%s][%s]", base, cropLabel, ovLabel)

		if splitCfg.AvatarSide == "left" {
			g.addf("[%s]crop=%d:%d:0:0[left_%d]", cropLabel, avatarW, h, i)
			g.addf("[%d:v]scale=%d:%d,setsar=1[right_%d]", scIdx, scW, h, i)
		} else {
			g.addf("[%s]crop=%d:%d:%d:0[right_%d]", cropLabel, avatarW, h, w-avatarW, i)
			g.addf("[%d:v]scale=%d:%d,setsar=1[left_%d]", scIdx, scW, h, i)
		}
		g.addf("[left_%d][right_%d]hstack=inputs=2[hs_%d]", i, i, i)

		next := fmt.Sprintf("split_%d", i)
		g.addf("[%s][hs_%d]overlay=0:0:enable='%s'[%s]", ovLabel, i, enableWindow(sc), next)
		base = next
	}

	if len(casts) > 0 {
		g.addf("[%s]null[vout]", base)
	} else {
		g.addf("[base]null[vout]")
	}
	c.normalizeOut(g)
	return g.String(), nil
}

// buildGreenscreen puts each screencast fullscreen behind the avatar
// foreground. The foreground comes from pre-rendered alpha videos when
// available, otherwise the raw avatar input is split and chroma-keyed.
func (c *Composer) buildGreenscreen(tl *timeline.Timeline, presence []bool, taIndex map[int]int, haveMattes bool) (string, error) {
	g := &graphBuilder{}
	avatars := tl.Layer(timeline.KindAvatar)
	casts := tl.Layer(timeline.KindScreencast)
	w := c.cfg.Output.Resolution.W
	h := c.cfg.Output.Resolution.H

	gsCfg := c.cfg.Composition.Greenscreen
	avatarW := int(float64(w) * gsCfg.AvatarScale)

	uses := make(map[int]int)
	for _, sc := range casts {
		ai, ok := avatarIndexBySegment(avatars, sc.Segment)
		if !ok {
			continue
		}
		if haveMattes {
			if _, exists := taIndex[ai]; !exists {
				continue
			}
		}
		uses[ai]++
	}

	splitSrc := make(map[int]string)
	fgSrc := make(map[int][]string)

	if !haveMattes {
		for ai := 0; ai < len(avatars); ai++ {
			n := uses[ai]
			if n == 0 {
				continue
			}
			labels := make([]string, n+1)
			labels[0] = fmt.Sprintf("[avsrc%d]", ai)
			for j := 0; j < n; j++ {
				labels[j+1] = fmt.Sprintf("[key%d_%d]", ai, j)
			}
			g.addf("[%d:v]split=%d%s", ai, n+1, strings.Join(labels, ""))
			splitSrc[ai] = labels[0]
			fgSrc[ai] = labels[1:]
		}
	}

	c.concatBase(g, len(avatars), splitSrc)
	c.audioPipeline(g, avatars, presence, tl.TotalDuration)

	if haveMattes {
		for ai := 0; ai < len(avatars); ai++ {
			n := uses[ai]
			if n == 0 {
				continue
			}
			if n == 1 {
				fgSrc[ai] = []string{fmt.Sprintf("[%d:v]", taIndex[ai])}
				continue
			}
			labels := make([]string, n)
			for j := range labels {
				labels[j] = fmt.Sprintf("[key%d_%d]", ai, j)
			}
			g.addf("[%d:v]split=%d%s", taIndex[ai], n, strings.Join(labels, ""))
			fgSrc[ai] = labels
		}
	}

	ax, ay, err := OverlayCoords(gsCfg.AvatarPosition, gsCfg.AvatarMargin, "w", "h")
	if err != nil {
		return "", err
	}

	base := "base"
	for i, sc := range casts {
		scIdx := len(avatars) + i
		enable := enableWindow(sc)

		g.addf("[%d:v]scale=%d:%d,setsar=1[bg_%d]", scIdx, w, h, i)
		next := fmt.Sprintf("sc_base_%d", i)
		g.addf("[%s][bg_%d]overlay=0:0:enable='%s'[%s]", base, i, enable, next)
		base = next

		ai, ok := avatarIndexBySegment(avatars, sc.Segment)
		if !ok {
			continue
		}
		src := popSrc(fgSrc, ai)
		if src == "" {
			continue
		}

		if haveMattes {
			g.addf("%sscale=%d:-1[ta_%d]", src, avatarW, i)
		} else {
			g.addf("%schromakey=0x00FF00:0.3:0.1,scale=%d:-1[ta_%d]", src, avatarW, i)
		}
		next = fmt.Sprintf("gs_%d", i)
		g.addf("[%s][ta_%d]overlay=x=%s:y=%s:enable='%s'[%s]", base, i, ax, ay, enable, next)
		base = next
	}

	g.addf("[%s]null[vout]", base)
	c.normalizeOut(g)
	return g.String(), nil
}
