package vision

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/rs/zerolog"
)

func testFrame(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("Failed to encode test frame: %v", err)
	}
	return buf.Bytes()
}

func TestDetectorClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/detect" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("Missing file part: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"detections":[{"bbox":[10,20,110,140],"confidence":0.98},{"bbox":[300,40,330,70],"confidence":0.42}]}`))
	}))
	defer server.Close()

	client := NewDetectorClient(server.URL)
	detections, err := client.Detect(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(detections) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(detections))
	}
	if detections[0].Confidence != 0.98 {
		t.Errorf("Expected confidence 0.98, got %f", detections[0].Confidence)
	}
	if detections[0].Width() != 100 || detections[0].Height() != 120 {
		t.Errorf("Unexpected box size %fx%f", detections[0].Width(), detections[0].Height())
	}
}

func TestDetectorClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewDetectorClient(server.URL)
	if _, err := client.Detect(context.Background(), []byte("jpeg")); err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestExtractorClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"dim":4,"embedding":[1,0,0,0],"model":"arcface"}`))
	}))
	defer server.Close()

	client := NewExtractorClient(server.URL, "arcface")
	emb, err := client.Embed(context.Background(), []byte("crop"))
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(emb) != 4 {
		t.Fatalf("Expected 4 dimensions, got %d", len(emb))
	}
	if client.Model() != "arcface" {
		t.Errorf("Expected model 'arcface', got '%s'", client.Model())
	}
}

func TestExtractorClientDimMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dim":512,"embedding":[1,0],"model":"arcface"}`))
	}))
	defer server.Close()

	client := NewExtractorClient(server.URL, "arcface")
	if _, err := client.Embed(context.Background(), []byte("crop")); err == nil {
		t.Fatal("Expected error for dim mismatch, got nil")
	}
}

func TestCropFace(t *testing.T) {
	frame := testFrame(t, 640, 480)

	crop, err := CropFace(frame, Detection{BBox: [4]float64{100, 100, 200, 220}, Confidence: 0.9})
	if err != nil {
		t.Fatalf("CropFace failed: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(crop))
	if err != nil {
		t.Fatalf("Failed to decode crop: %v", err)
	}
	if img.Bounds().Dx() != faceCropSize || img.Bounds().Dy() != faceCropSize {
		t.Errorf("Expected %dx%d crop, got %dx%d", faceCropSize, faceCropSize, img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestCropFaceClampsToFrame(t *testing.T) {
	frame := testFrame(t, 100, 100)

	// Box partially outside the frame must be clamped, not rejected.
	crop, err := CropFace(frame, Detection{BBox: [4]float64{-20, -20, 50, 50}, Confidence: 0.9})
	if err != nil {
		t.Fatalf("CropFace failed: %v", err)
	}
	if len(crop) == 0 {
		t.Fatal("Expected crop data")
	}
}

func TestCropFaceDegenerateBox(t *testing.T) {
	frame := testFrame(t, 100, 100)

	if _, err := CropFace(frame, Detection{BBox: [4]float64{500, 500, 600, 600}, Confidence: 0.9}); err == nil {
		t.Fatal("Expected error for box outside frame, got nil")
	}
}

type fakeDetector struct {
	detections []Detection
	err        error
}

func (f *fakeDetector) Detect(ctx context.Context, frame []byte) ([]Detection, error) {
	return f.detections, f.err
}

type fakeExtractor struct {
	embedding []float32
	err       error
}

func (f *fakeExtractor) Embed(ctx context.Context, faceCrop []byte) ([]float32, error) {
	return f.embedding, f.err
}

func (f *fakeExtractor) Model() string { return "arcface" }

func TestPipelineExtractFirstFace(t *testing.T) {
	frame := testFrame(t, 640, 480)

	detector := &fakeDetector{detections: []Detection{
		{BBox: [4]float64{300, 40, 330, 70}, Confidence: 0.95},  // first confident face, wins
		{BBox: [4]float64{100, 100, 300, 340}, Confidence: 0.9}, // larger but later
		{BBox: [4]float64{10, 10, 200, 200}, Confidence: 0.3},   // below threshold
	}}
	extractor := &fakeExtractor{embedding: []float32{3, 0, 4, 0}}

	p := NewPipeline(detector, extractor, 0.7, 4, zerolog.Nop())
	emb, err := p.ExtractFirstFace(context.Background(), frame)
	if err != nil {
		t.Fatalf("ExtractFirstFace failed: %v", err)
	}

	var norm float64
	for _, x := range emb {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("Expected unit-norm embedding, got norm^2 = %f", norm)
	}
}

func TestPipelinePicksFirstConfidentFace(t *testing.T) {
	frame := testFrame(t, 200, 200)

	// The later detection is larger but lies outside the frame; cropping
	// it would fail. Selection in detector order must never reach it.
	detector := &fakeDetector{detections: []Detection{
		{BBox: [4]float64{10, 10, 40, 40}, Confidence: 0.3},      // below threshold
		{BBox: [4]float64{20, 20, 80, 90}, Confidence: 0.8},      // first confident, wins
		{BBox: [4]float64{500, 500, 900, 900}, Confidence: 0.99}, // larger, outside frame
	}}
	extractor := &fakeExtractor{embedding: []float32{1, 0, 0, 0}}

	p := NewPipeline(detector, extractor, 0.7, 4, zerolog.Nop())
	if _, err := p.ExtractFirstFace(context.Background(), frame); err != nil {
		t.Fatalf("Expected the first confident detection to be used, got %v", err)
	}
}

func TestPipelineNoConfidentFace(t *testing.T) {
	frame := testFrame(t, 100, 100)

	tests := []struct {
		name       string
		detections []Detection
	}{
		{"no detections", nil},
		{"all below threshold", []Detection{{BBox: [4]float64{10, 10, 50, 50}, Confidence: 0.5}}},
		{"degenerate box", []Detection{{BBox: [4]float64{50, 50, 50, 50}, Confidence: 0.99}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(&fakeDetector{detections: tt.detections}, &fakeExtractor{}, 0.7, 4, zerolog.Nop())
			_, err := p.ExtractFirstFace(context.Background(), frame)
			if !errors.Is(err, store.ErrExtractionFailure) {
				t.Errorf("Expected ErrExtractionFailure, got %v", err)
			}
		})
	}
}

func TestPipelineDimCheck(t *testing.T) {
	frame := testFrame(t, 100, 100)
	detector := &fakeDetector{detections: []Detection{{BBox: [4]float64{10, 10, 60, 60}, Confidence: 0.9}}}
	extractor := &fakeExtractor{embedding: []float32{1, 0}}

	p := NewPipeline(detector, extractor, 0.7, 512, zerolog.Nop())
	if _, err := p.ExtractFirstFace(context.Background(), frame); err == nil {
		t.Fatal("Expected error for wrong embedding dim, got nil")
	}
}

func TestSnapshotSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpegbytes"))
	}))
	defer server.Close()

	src := NewSnapshotSource(server.URL)
	frame, err := src.Grab(context.Background())
	if err != nil {
		t.Fatalf("Grab failed: %v", err)
	}
	if string(frame) != "jpegbytes" {
		t.Errorf("Unexpected frame: %q", frame)
	}
}

func TestSnapshotSourceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "offline", http.StatusBadGateway)
	}))
	defer server.Close()

	src := NewSnapshotSource(server.URL)
	if _, err := src.Grab(context.Background()); err == nil {
		t.Fatal("Expected error, got nil")
	}
}
