package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// embeddingResponse represents the response from the embedding server
type embeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// ExtractorClient computes face embeddings using the embedding server.
type ExtractorClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewExtractorClient creates a new embedding extractor client.
func NewExtractorClient(baseURL, model string) *ExtractorClient {
	return &ExtractorClient{
		baseURL: normalizeBaseURL(baseURL, defaultExtractorURL),
		model:   model,
		client:  newHTTPClient(),
	}
}

// Embed computes the embedding for an aligned face crop.
func (c *ExtractorClient) Embed(ctx context.Context, faceCrop []byte) ([]float32, error) {
	body, err := postMultipartImage(ctx, c.client, c.baseURL+"/embed/face", faceCrop)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(resp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	if resp.Dim != 0 && resp.Dim != len(resp.Embedding) {
		return nil, fmt.Errorf("embedding length %d does not match declared dim %d", len(resp.Embedding), resp.Dim)
	}

	return resp.Embedding, nil
}

// Model returns the model name being used.
func (c *ExtractorClient) Model() string {
	return c.model
}
