// Package head computes the crop and mask geometry used to lift the
// avatar's head out of a clip for picture-in-picture and green-screen
// layers. It produces filter text and rectangles only; pixel work is
// left to the transcoder.
package head

import (
	"fmt"
	"math"
)

// Variant names which extraction strategy a descriptor was built with.
type Variant string

const (
	VariantBasic    Variant = "basic"
	VariantEnhanced Variant = "enhanced"
)

// boxMargin widens a detected face box so the crop keeps hair and chin.
const boxMargin = 0.3

// Descriptor is the geometry needed to cut a circular head layer from
// an avatar clip: a crop region in the source frame and the side length
// of the scaled square the circle mask is drawn into.
type Descriptor struct {
	Variant Variant
	Size    int
	Crop    string
}

// Basic returns the always-available descriptor: a square crop of the
// frame's shorter side, centered horizontally and biased toward the
// upper third where the head sits in talking clips.
func Basic(outputWidth int, headScale float64) Descriptor {
	return Descriptor{
		Variant: VariantBasic,
		Size:    headSize(outputWidth, headScale),
		Crop:    `min(iw\,ih):min(iw\,ih):(iw-min(iw\,ih))/2:(ih-min(iw\,ih))/3`,
	}
}

// Enhanced builds a descriptor from a detector-supplied face box with
// normalized coordinates. The box is widened by a fixed margin, squared
// on its longer side, and clamped to the frame. A degenerate result
// reports ErrUnavailable so the caller can fall back to Basic.
func Enhanced(box Box, frameWidth, frameHeight, outputWidth int, headScale float64) (Descriptor, error) {
	if box.W <= 0 || box.H <= 0 {
		return Descriptor{}, fmt.Errorf("empty detection box: %w", ErrUnavailable)
	}

	cx := box.X + box.W/2
	cy := box.Y + box.H/2
	side := math.Max(box.W, box.H) * (1 + boxMargin)

	fw := float64(frameWidth)
	fh := float64(frameHeight)
	x1 := int(math.Max(0, (cx-side/2)*fw))
	y1 := int(math.Max(0, (cy-side/2)*fh))
	x2 := int(math.Min(fw, (cx+side/2)*fw))
	y2 := int(math.Min(fh, (cy+side/2)*fh))

	w := x2 - x1
	h := y2 - y1
	if w <= 0 || h <= 0 {
		return Descriptor{}, fmt.Errorf("detection box outside frame: %w", ErrUnavailable)
	}

	return Descriptor{
		Variant: VariantEnhanced,
		Size:    headSize(outputWidth, headScale),
		Crop:    fmt.Sprintf("%d:%d:%d:%d", w, h, x1, y1),
	}, nil
}

// CutoutFilter renders the transcoder filter chain that crops the head
// region, scales it to the descriptor size, and punches a circular
// alpha mask through it.
func (d Descriptor) CutoutFilter() string {
	return fmt.Sprintf(
		"[0:v]crop=%s,scale=%d:%d,format=yuva420p,"+
			"geq=lum='lum(X,Y)':cb='cb(X,Y)':cr='cr(X,Y)':"+
			"a='if(lte(pow(X-%d/2,2)+pow(Y-%d/2,2),pow(%d/2-2,2)),255,0)'[head]",
		d.Crop, d.Size, d.Size, d.Size, d.Size, d.Size)
}

func headSize(outputWidth int, headScale float64) int {
	return int(float64(outputWidth) * headScale)
}
