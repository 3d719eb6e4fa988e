package head

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/ugckit/ugckit/internal/ffmpeg"
)

// Input geometry and anchor count of the Ultra-Light RFB-320 face
// detector export. Other exports of the same family share these.
const (
	modelInputW  = 320
	modelInputH  = 240
	modelAnchors = 4420
	modelConfMin = 0.7
)

// ModelDetector runs an in-process ONNX face detector against a frame
// sampled from the clip midpoint. It honors the same contract as the
// external-tool Detector: every failure short of context cancellation
// is reported as ErrUnavailable so callers fall back to the basic crop.
type ModelDetector struct {
	logger    zerolog.Logger
	exec      *ffmpeg.Executor
	modelPath string

	initOnce sync.Once
	initErr  error
	session  *ort.DynamicAdvancedSession
}

func NewModelDetector(logger zerolog.Logger, exec *ffmpeg.Executor, modelPath string) *ModelDetector {
	return &ModelDetector{
		logger:    logger.With().Str("component", "head").Logger(),
		exec:      exec,
		modelPath: modelPath,
	}
}

// initSession loads the model once; later detections reuse the session.
func (m *ModelDetector) initSession() error {
	m.initOnce.Do(func() {
		if _, err := os.Stat(m.modelPath); err != nil {
			m.initErr = fmt.Errorf("face model not found: %s: %w", m.modelPath, ErrUnavailable)
			return
		}

		if err := ort.InitializeEnvironment(); err != nil {
			m.initErr = fmt.Errorf("initializing ONNX runtime: %v: %w", err, ErrUnavailable)
			return
		}

		sess, err := ort.NewDynamicAdvancedSession(
			m.modelPath,
			[]string{"input"},
			[]string{"scores", "boxes"},
			nil,
		)
		if err != nil {
			m.initErr = fmt.Errorf("loading face model: %v: %w", err, ErrUnavailable)
			return
		}

		m.session = sess
		m.logger.Info().Str("model", m.modelPath).Msg("face model loaded")
	})
	return m.initErr
}

// DetectFace samples a frame from the middle of the clip and returns
// the highest-confidence face box.
func (m *ModelDetector) DetectFace(ctx context.Context, mediaPath string) (Box, error) {
	if err := m.initSession(); err != nil {
		return Box{}, err
	}

	info, err := m.exec.Probe(ctx, mediaPath)
	if err != nil {
		if ctx.Err() != nil {
			return Box{}, ctx.Err()
		}
		return Box{}, fmt.Errorf("probing %s for frame sampling: %v: %w", mediaPath, err, ErrUnavailable)
	}

	framePath := filepath.Join(os.TempDir(), fmt.Sprintf("ugckit_face_%d.jpg", time.Now().UnixNano()))
	defer os.Remove(framePath)

	if err := m.exec.ExtractFrame(ctx, mediaPath, info.Duration/2, framePath); err != nil {
		if ctx.Err() != nil {
			return Box{}, ctx.Err()
		}
		return Box{}, fmt.Errorf("sampling frame: %v: %w", err, ErrUnavailable)
	}

	input, err := frameTensor(framePath)
	if err != nil {
		return Box{}, fmt.Errorf("preparing frame: %v: %w", err, ErrUnavailable)
	}
	defer input.Destroy()

	scores, err := ort.NewEmptyTensor[float32](ort.NewShape(1, modelAnchors, 2))
	if err != nil {
		return Box{}, fmt.Errorf("allocating scores tensor: %v: %w", err, ErrUnavailable)
	}
	defer scores.Destroy()

	boxes, err := ort.NewEmptyTensor[float32](ort.NewShape(1, modelAnchors, 4))
	if err != nil {
		return Box{}, fmt.Errorf("allocating boxes tensor: %v: %w", err, ErrUnavailable)
	}
	defer boxes.Destroy()

	inputs := []ort.ArbitraryTensor{input}
	outputs := []ort.ArbitraryTensor{scores, boxes}
	if err := m.session.Run(inputs, outputs); err != nil {
		return Box{}, fmt.Errorf("face inference failed: %v: %w", err, ErrUnavailable)
	}

	box, ok := bestDetection(scores.GetData(), boxes.GetData(), modelConfMin)
	if !ok {
		return Box{}, fmt.Errorf("no face above confidence %.2f: %w", modelConfMin, ErrUnavailable)
	}

	m.logger.Debug().
		Str("file", mediaPath).
		Float64("x", box.X).
		Float64("y", box.Y).
		Float64("width", box.W).
		Float64("height", box.H).
		Msg("face detected by model")
	return box, nil
}

// Close releases the session and the ONNX environment.
func (m *ModelDetector) Close() error {
	if m.session == nil {
		return nil
	}
	if err := m.session.Destroy(); err != nil {
		return err
	}
	m.session = nil
	return ort.DestroyEnvironment()
}

// frameTensor decodes an image and lays it out as float32[1,3,H,W]
// normalized to (v-127)/128, the scaling the RFB detectors train with.
func frameTensor(imagePath string) (*ort.Tensor[float32], error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	resized := resize.Resize(modelInputW, modelInputH, img, resize.Bilinear)

	data := make([]float32, 3*modelInputH*modelInputW)
	bounds := resized.Bounds()
	idx := 0

	for ch := 0; ch < 3; ch++ {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, _ := resized.At(x, y).RGBA()
				var v float32
				switch ch {
				case 0:
					v = float32(r >> 8)
				case 1:
					v = float32(g >> 8)
				case 2:
					v = float32(b >> 8)
				}
				data[idx] = (v - 127) / 128
				idx++
			}
		}
	}

	return ort.NewTensor(ort.NewShape(1, 3, modelInputH, modelInputW), data)
}

// bestDetection scans the flattened score/box tensors for the highest
// confidence face. Scores hold [background, face] pairs per anchor;
// boxes hold normalized [x1, y1, x2, y2] corners.
func bestDetection(scores, boxes []float32, minConf float32) (Box, bool) {
	n := len(scores) / 2
	if b := len(boxes) / 4; b < n {
		n = b
	}

	best := -1
	var bestConf float32
	for i := 0; i < n; i++ {
		if c := scores[i*2+1]; c > bestConf {
			bestConf, best = c, i
		}
	}
	if best < 0 || bestConf < minConf {
		return Box{}, false
	}

	x1 := clamp01(float64(boxes[best*4]))
	y1 := clamp01(float64(boxes[best*4+1]))
	x2 := clamp01(float64(boxes[best*4+2]))
	y2 := clamp01(float64(boxes[best*4+3]))
	if x2 <= x1 || y2 <= y1 {
		return Box{}, false
	}

	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
