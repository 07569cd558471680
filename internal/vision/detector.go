package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Detection is one detected face in frame pixel coordinates.
type Detection struct {
	BBox       [4]float64 // x1, y1, x2, y2
	Confidence float64
}

// Width returns the box width in pixels.
func (d Detection) Width() float64 { return d.BBox[2] - d.BBox[0] }

// Height returns the box height in pixels.
func (d Detection) Height() float64 { return d.BBox[3] - d.BBox[1] }

// Area returns the box area in square pixels.
func (d Detection) Area() float64 { return d.Width() * d.Height() }

// detectorResponse represents the response from the detection server
type detectorResponse struct {
	Detections []struct {
		BBox       []float64 `json:"bbox"`
		Confidence float64   `json:"confidence"`
	} `json:"detections"`
}

// DetectorClient locates faces in a frame using the detection server.
type DetectorClient struct {
	baseURL string
	client  *http.Client
}

// NewDetectorClient creates a new face detector client.
func NewDetectorClient(baseURL string) *DetectorClient {
	return &DetectorClient{
		baseURL: normalizeBaseURL(baseURL, defaultDetectorURL),
		client:  newHTTPClient(),
	}
}

// Detect returns all faces found in the JPEG frame, unfiltered.
func (c *DetectorClient) Detect(ctx context.Context, frame []byte) ([]Detection, error) {
	body, err := postMultipartImage(ctx, c.client, c.baseURL+"/detect", frame)
	if err != nil {
		return nil, err
	}

	var resp detectorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	detections := make([]Detection, 0, len(resp.Detections))
	for _, d := range resp.Detections {
		if len(d.BBox) != 4 {
			return nil, fmt.Errorf("malformed bbox with %d coordinates", len(d.BBox))
		}
		detections = append(detections, Detection{
			BBox:       [4]float64{d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3]},
			Confidence: d.Confidence,
		})
	}
	return detections, nil
}
