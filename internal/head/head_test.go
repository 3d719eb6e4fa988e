package head

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestBasicDescriptor(t *testing.T) {
	d := Basic(1080, 0.25)

	if d.Variant != VariantBasic {
		t.Errorf("variant = %q", d.Variant)
	}
	if d.Size != 270 {
		t.Errorf("size = %d, want 1080*0.25 = 270", d.Size)
	}
	if !strings.Contains(d.Crop, `min(iw\,ih)`) {
		t.Errorf("basic crop should use the frame's shorter side: %q", d.Crop)
	}
	if !strings.Contains(d.Crop, "/3") {
		t.Errorf("basic crop should bias toward the upper third: %q", d.Crop)
	}
}

func TestHeadSizeTruncates(t *testing.T) {
	if got := Basic(1080, 0.33).Size; got != 356 {
		t.Errorf("size = %d, want 356", got)
	}
}

func TestEnhancedDescriptor(t *testing.T) {
	box := Box{X: 0.4, Y: 0.2, W: 0.2, H: 0.2}

	d, err := Enhanced(box, 1000, 1000, 1080, 0.25)
	if err != nil {
		t.Fatalf("Enhanced: %v", err)
	}
	if d.Variant != VariantEnhanced {
		t.Errorf("variant = %q", d.Variant)
	}
	if d.Size != 270 {
		t.Errorf("size = %d, want 270", d.Size)
	}
	if d.Crop != "260:260:370:170" {
		t.Errorf("crop = %q, want box widened 30%% and squared", d.Crop)
	}
}

func TestEnhancedClampsToFrame(t *testing.T) {
	box := Box{X: 0.9, Y: 0.0, W: 0.2, H: 0.1}

	d, err := Enhanced(box, 1000, 500, 1080, 0.25)
	if err != nil {
		t.Fatalf("Enhanced: %v", err)
	}
	if d.Crop != "130:90:870:0" {
		t.Errorf("crop = %q, want region clamped inside the frame", d.Crop)
	}
}

func TestEnhancedRejectsEmptyBox(t *testing.T) {
	_, err := Enhanced(Box{X: 0.5, Y: 0.5}, 1000, 1000, 1080, 0.25)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("want ErrUnavailable, got %v", err)
	}
}

func TestCutoutFilter(t *testing.T) {
	got := Basic(1080, 0.25).CutoutFilter()
	want := `[0:v]crop=min(iw\,ih):min(iw\,ih):(iw-min(iw\,ih))/2:(ih-min(iw\,ih))/3,` +
		"scale=270:270,format=yuva420p," +
		"geq=lum='lum(X,Y)':cb='cb(X,Y)':cr='cr(X,Y)':" +
		"a='if(lte(pow(X-270/2,2)+pow(Y-270/2,2),pow(270/2-2,2)),255,0)'[head]"
	if got != want {
		t.Errorf("filter mismatch:\ngot  %s\nwant %s", got, want)
	}
}

func TestParseDetection(t *testing.T) {
	box, err := parseDetection([]byte(`{"x": 0.31, "y": 0.12, "width": 0.22, "height": 0.28}`))
	if err != nil {
		t.Fatalf("parseDetection: %v", err)
	}
	if box.X != 0.31 || box.W != 0.22 {
		t.Errorf("box = %+v", box)
	}

	if _, err := parseDetection([]byte("no face found")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("malformed output should report ErrUnavailable, got %v", err)
	}
	if _, err := parseDetection([]byte(`{"x": 0.5, "y": 0.5, "width": 0, "height": 0}`)); !errors.Is(err, ErrUnavailable) {
		t.Errorf("empty box should report ErrUnavailable, got %v", err)
	}
}

func TestDetectFaceWithoutTool(t *testing.T) {
	unconfigured := NewDetector(zerolog.Nop(), "")
	if _, err := unconfigured.DetectFace(context.Background(), "clip.mp4"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("unconfigured detector should report ErrUnavailable, got %v", err)
	}

	missing := NewDetector(zerolog.Nop(), "ugckit-test-no-such-detector")
	if _, err := missing.DetectFace(context.Background(), "clip.mp4"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("missing binary should report ErrUnavailable, got %v", err)
	}
}

func TestSelectorFallsBackOnceWithWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	selector := NewSelector(logger, NewDetector(logger, ""), 1080, 0.25)

	for i := 0; i < 3; i++ {
		d, err := selector.Describe(context.Background(), "clip.mp4", 1920, 1080)
		if err != nil {
			t.Fatalf("Describe: %v", err)
		}
		if d.Variant != VariantBasic {
			t.Errorf("fallback variant = %q", d.Variant)
		}
	}

	if got := strings.Count(buf.String(), "using basic circular crop"); got != 1 {
		t.Errorf("fallback warned %d times, want exactly once", got)
	}
}

func TestMattingWithoutTool(t *testing.T) {
	m := NewMatting(zerolog.Nop(), "")
	err := m.RenderAlpha(context.Background(), "in.mp4", "out.webm")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("unconfigured matting should report ErrUnavailable, got %v", err)
	}
}
