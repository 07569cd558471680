package store

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSW index parameters for 512-dim face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWSearchMultiplier is the factor to request more candidates from
	// HNSW so enough survive the deleted-row filter.
	HNSWSearchMultiplier = 3
)

const hnswMetadataVersion = 1

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	EmbeddingCount int64     `json:"embedding_count"`
	MaxEmbeddingID int64     `json:"max_embedding_id"`
	BuildTime      time.Time `json:"build_time"`
	Version        int       `json:"version"`
}

// HNSWIndex wraps the HNSW graph for enrolled-face similarity search.
type HNSWIndex struct {
	graph      *hnsw.Graph[int64]
	savedGraph *hnsw.SavedGraph[int64]    // For persistence
	idToEmb    map[int64]*StoredEmbedding // Maps HNSW node ID to embedding row
	mu         sync.RWMutex
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToEmb: make(map[int64]*StoredEmbedding),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// BuildFromEmbeddings builds the index from a slice of embedding rows.
func (h *HNSWIndex) BuildFromEmbeddings(embeddings []StoredEmbedding) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(embeddings) == 0 {
		h.graph = nil
		h.savedGraph = nil
		h.idToEmb = make(map[int64]*StoredEmbedding)
		return nil
	}

	g := newGraph()
	h.idToEmb = make(map[int64]*StoredEmbedding, len(embeddings))

	for i := range embeddings {
		emb := &embeddings[i]
		if len(emb.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(emb.ID, emb.Embedding))
		h.idToEmb[emb.ID] = emb
	}

	h.graph = g
	return nil
}

// Add inserts a single embedding row into the index.
func (h *HNSWIndex) Add(emb *StoredEmbedding) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(emb.Embedding) == 0 {
		return
	}
	if h.graph == nil {
		h.graph = newGraph()
	}
	h.graph.Add(hnsw.MakeNode(emb.ID, emb.Embedding))
	h.idToEmb[emb.ID] = emb
}

// Delete removes all embeddings of a person from result lookups.
// HNSW doesn't support true deletion; removing from idToEmb effectively
// removes rows from search results since results are filtered by lookup.
func (h *HNSWIndex) Delete(personID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, emb := range h.idToEmb {
		if emb.PersonID == personID {
			delete(h.idToEmb, id)
		}
	}
}

// Rename updates the cached name on all embeddings of a person.
func (h *HNSWIndex) Rename(personID int64, newName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, emb := range h.idToEmb {
		if emb.PersonID == personID {
			emb.Name = newName
		}
	}
}

// Search returns the k nearest neighbors to the query, best first, with
// cosine similarity recomputed exactly from the stored vectors.
func (h *HNSWIndex) Search(query []float32, k int) ([]Neighbor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return nil, errors.New("index not initialized")
	}

	// Over-fetch so deleted rows filtered below don't starve the result.
	searchK := k * HNSWSearchMultiplier
	if searchK < 16 {
		searchK = 16
	}

	var nodes []hnsw.Node[int64]
	if h.savedGraph != nil {
		nodes = h.savedGraph.Search(query, searchK)
	} else {
		nodes = h.graph.Search(query, searchK)
	}

	neighbors := make([]Neighbor, 0, k)
	for _, n := range nodes {
		emb, ok := h.idToEmb[n.Key]
		if !ok || len(emb.Embedding) == 0 {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			PersonID:   emb.PersonID,
			Name:       emb.Name,
			Similarity: CosineSimilarity(query, emb.Embedding),
		})
		if len(neighbors) >= k {
			break
		}
	}

	return neighbors, nil
}

// Count returns the number of indexed embeddings.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToEmb)
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil && h.savedGraph == nil
}

// SaveWithMetadata persists the graph, staleness metadata and embedding rows
// to disk (path, path.meta, path.embeddings).
func (h *HNSWIndex) SaveWithMetadata(path string, metadata HNSWIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		_ = os.Remove(path + ".embeddings")
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if h.savedGraph != nil {
		// SavedGraph embeds *Graph, so we can call Export on it
		err = h.savedGraph.Export(f)
	} else {
		err = h.graph.Export(f)
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing HNSW index file: %w", err)
	}

	metadata.Version = hnswMetadataVersion
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	embeddings := make([]StoredEmbedding, 0, len(h.idToEmb))
	for _, emb := range h.idToEmb {
		embeddings = append(embeddings, *emb)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(embeddings); err != nil {
		return fmt.Errorf("failed to encode embeddings: %w", err)
	}
	if err := os.WriteFile(path+".embeddings", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write embeddings file: %w", err)
	}

	return nil
}

// LoadWithMetadata loads the graph and embedding rows saved by
// SaveWithMetadata.
func (h *HNSWIndex) LoadWithMetadata(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	data, err := os.ReadFile(path + ".embeddings")
	if err != nil {
		return fmt.Errorf("failed to read embeddings file: %w", err)
	}
	var embeddings []StoredEmbedding
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&embeddings); err != nil {
		return fmt.Errorf("failed to decode embeddings: %w", err)
	}

	h.savedGraph = saved
	h.idToEmb = make(map[int64]*StoredEmbedding, len(embeddings))
	for i := range embeddings {
		h.idToEmb[embeddings[i].ID] = &embeddings[i]
	}

	return nil
}

// LoadHNSWMetadata loads just the .meta file for staleness checking.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta")
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}
