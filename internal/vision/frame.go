package vision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FrameSource produces one JPEG camera frame per call.
type FrameSource interface {
	Grab(ctx context.Context) ([]byte, error)
}

// SnapshotSource grabs frames from an HTTP camera snapshot endpoint,
// the kind exposed by IP cameras and mjpeg proxies.
type SnapshotSource struct {
	url    string
	client *http.Client
}

// NewSnapshotSource creates a frame source backed by an HTTP snapshot URL.
func NewSnapshotSource(url string) *SnapshotSource {
	return &SnapshotSource{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *SnapshotSource) Grab(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("camera request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	frame, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return frame, nil
}

// StaticSource replays a fixed frame. Used in tests and for enrolling
// from a photo on disk.
type StaticSource struct {
	Frame []byte
	Err   error
}

func (s *StaticSource) Grab(ctx context.Context) ([]byte, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Frame, nil
}

var _ FrameSource = (*SnapshotSource)(nil)
var _ FrameSource = (*StaticSource)(nil)
