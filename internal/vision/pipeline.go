package vision

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/rs/zerolog"
)

// Detector locates faces in a JPEG frame.
type Detector interface {
	Detect(ctx context.Context, frame []byte) ([]Detection, error)
}

// Extractor embeds an aligned face crop.
type Extractor interface {
	Embed(ctx context.Context, faceCrop []byte) ([]float32, error)
	Model() string
}

// Pipeline chains detection, cropping and embedding extraction into a
// single frame-to-vector step shared by scanning and enrollment.
type Pipeline struct {
	detector      Detector
	extractor     Extractor
	minConfidence float64
	dim           int
	log           zerolog.Logger
}

// NewPipeline creates a vision pipeline.
func NewPipeline(detector Detector, extractor Extractor, minConfidence float64, dim int, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		detector:      detector,
		extractor:     extractor,
		minConfidence: minConfidence,
		dim:           dim,
		log:           log.With().Str("component", "vision").Logger(),
	}
}

// Model returns the embedding model name.
func (p *Pipeline) Model() string {
	return p.extractor.Model()
}

// ExtractFirstFace picks the first confident face in the frame and returns
// its L2-normalized embedding. Frames with no confident face return
// store.ErrExtractionFailure so callers can keep scanning.
func (p *Pipeline) ExtractFirstFace(ctx context.Context, frame []byte) ([]float32, error) {
	detections, err := p.detector.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}

	best, ok := p.pickFace(detections)
	if !ok {
		return nil, store.ErrExtractionFailure
	}

	crop, err := CropFace(frame, best)
	if err != nil {
		return nil, fmt.Errorf("cropping face: %w", err)
	}

	embedding, err := p.extractor.Embed(ctx, crop)
	if err != nil {
		return nil, fmt.Errorf("embedding face: %w", err)
	}
	if p.dim > 0 && len(embedding) != p.dim {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(embedding), p.dim)
	}

	p.log.Debug().
		Int("detections", len(detections)).
		Float64("confidence", best.Confidence).
		Msg("face extracted")

	return store.Normalize(embedding), nil
}

// pickFace returns the first confident, non-degenerate detection in the
// detector's own ranking order.
func (p *Pipeline) pickFace(detections []Detection) (Detection, bool) {
	for _, d := range detections {
		if d.Confidence >= p.minConfidence && d.Area() > 0 {
			return d, true
		}
	}
	return Detection{}, false
}
