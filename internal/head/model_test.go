package head

import (
	"math"
	"testing"
)

func TestBestDetection(t *testing.T) {
	// three anchors: weak face, strong face, background
	scores := []float32{
		0.8, 0.2,
		0.1, 0.9,
		0.95, 0.05,
	}
	boxes := []float32{
		0.1, 0.1, 0.3, 0.3,
		0.4, 0.2, 0.7, 0.6,
		0.0, 0.0, 1.0, 1.0,
	}

	box, ok := bestDetection(scores, boxes, 0.7)
	if !ok {
		t.Fatal("expected a detection above threshold")
	}
	if math.Abs(box.X-0.4) > 1e-6 || math.Abs(box.Y-0.2) > 1e-6 {
		t.Errorf("box origin = (%v, %v), want (0.4, 0.2)", box.X, box.Y)
	}
	if math.Abs(box.W-0.3) > 1e-6 || math.Abs(box.H-0.4) > 1e-6 {
		t.Errorf("box size = (%v, %v), want (0.3, 0.4)", box.W, box.H)
	}
}

func TestBestDetectionBelowThreshold(t *testing.T) {
	scores := []float32{0.9, 0.1}
	boxes := []float32{0.1, 0.1, 0.5, 0.5}

	if _, ok := bestDetection(scores, boxes, 0.7); ok {
		t.Error("expected no detection below the confidence threshold")
	}
}

func TestBestDetectionClampsCorners(t *testing.T) {
	scores := []float32{0.0, 0.99}
	boxes := []float32{-0.2, 0.5, 0.5, 1.4}

	box, ok := bestDetection(scores, boxes, 0.7)
	if !ok {
		t.Fatal("expected a detection")
	}
	if box.X != 0 || box.Y != 0.5 {
		t.Errorf("origin = (%v, %v), want (0, 0.5)", box.X, box.Y)
	}
	if math.Abs(box.W-0.5) > 1e-6 || math.Abs(box.H-0.5) > 1e-6 {
		t.Errorf("size = (%v, %v), want (0.5, 0.5)", box.W, box.H)
	}
}

func TestBestDetectionDegenerateBox(t *testing.T) {
	scores := []float32{0.0, 0.99}
	boxes := []float32{0.5, 0.5, 0.5, 0.5}

	if _, ok := bestDetection(scores, boxes, 0.7); ok {
		t.Error("expected zero-area box to be rejected")
	}
}

func TestClamp01(t *testing.T) {
	if got := clamp01(-1); got != 0 {
		t.Errorf("clamp01(-1) = %v, want 0", got)
	}
	if got := clamp01(2); got != 1 {
		t.Errorf("clamp01(2) = %v, want 1", got)
	}
	if got := clamp01(0.42); got != 0.42 {
		t.Errorf("clamp01(0.42) = %v, want 0.42", got)
	}
}
