package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
)

const pqUniqueViolation = "23505"

// PersonRepository provides PostgreSQL-backed roster storage with an
// optional in-memory HNSW index for similarity search.
type PersonRepository struct {
	pool *Pool
	log  zerolog.Logger

	hnswIndex     *store.HNSWIndex
	hnswEnabled   bool
	hnswIndexPath string
	hnswMu        sync.RWMutex
}

// NewPersonRepository creates a new PostgreSQL person repository.
func NewPersonRepository(pool *Pool, log zerolog.Logger) *PersonRepository {
	return &PersonRepository{pool: pool, log: log.With().Str("component", "person_repo").Logger()}
}

// GetPerson retrieves a person by exact name; store.ErrNotFound if missing.
func (r *PersonRepository) GetPerson(ctx context.Context, name string) (*store.Person, error) {
	var p store.Person
	err := r.pool.QueryRow(ctx,
		"SELECT id, name, created_at FROM persons WHERE name = $1", name,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get person %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	return &p, nil
}

// ListPersons returns all enrolled persons ordered by name.
func (r *PersonRepository) ListPersons(ctx context.Context) ([]store.Person, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, name, created_at FROM persons ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	var persons []store.Person
	for rows.Next() {
		var p store.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return persons, nil
}

// CreatePerson commits person + embedding + the given schedule in a single
// transaction so a failed schedule insert never leaves a half-enrolled row.
func (r *PersonRepository) CreatePerson(ctx context.Context, name string, embedding []float32, model string, schedule store.WorkSchedule) (*store.Person, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var p store.Person
	err = tx.QueryRowContext(ctx,
		"INSERT INTO persons (name) VALUES ($1) RETURNING id, name, created_at", name,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("create person %q: %w", name, store.ErrDuplicateName)
	}
	if err != nil {
		return nil, fmt.Errorf("insert person: %w", err)
	}

	var embID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO person_embeddings (person_id, embedding, model, dim)
		VALUES ($1, $2::vector, $3, $4)
		RETURNING id
	`, p.ID, pgvector.NewVector(embedding), model, len(embedding)).Scan(&embID)
	if err != nil {
		return nil, fmt.Errorf("insert embedding: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO work_schedules (person_id, work_date, start_time, end_time)
		VALUES ($1, $2::date, $3, $4)
	`, p.ID, store.DayOf(schedule.Date), schedule.Start.String(), schedule.End.String())
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment: %w", err)
	}

	r.hnswMu.RLock()
	if r.hnswEnabled && r.hnswIndex != nil {
		r.hnswIndex.Add(&store.StoredEmbedding{
			ID:        embID,
			PersonID:  p.ID,
			Name:      p.Name,
			Embedding: embedding,
			Model:     model,
			Dim:       len(embedding),
			CreatedAt: p.CreatedAt,
		})
	}
	r.hnswMu.RUnlock()

	r.log.Info().Str("name", name).Int64("person_id", p.ID).Msg("person enrolled")
	return &p, nil
}

// DeletePerson removes schedule rows, attendance rows and the person row
// (embeddings cascade) in one transaction, mirroring the cascade contract.
func (r *PersonRepository) DeletePerson(ctx context.Context, name string) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var personID int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM persons WHERE name = $1", name).Scan(&personID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("delete person %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query person: %w", err)
	}

	for _, stmt := range []string{
		"DELETE FROM work_schedules WHERE person_id = $1",
		"DELETE FROM attendance_events WHERE person_id = $1",
		"DELETE FROM person_embeddings WHERE person_id = $1",
		"DELETE FROM persons WHERE id = $1",
	} {
		if _, err := tx.ExecContext(ctx, stmt, personID); err != nil {
			return fmt.Errorf("cascade delete: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	r.hnswMu.RLock()
	if r.hnswEnabled && r.hnswIndex != nil {
		r.hnswIndex.Delete(personID)
	}
	r.hnswMu.RUnlock()

	r.log.Info().Str("name", name).Int64("person_id", personID).Msg("person deleted")
	return nil
}

// RenamePerson changes the identity key of an enrolled person.
func (r *PersonRepository) RenamePerson(ctx context.Context, oldName, newName string) error {
	result, err := r.pool.Exec(ctx, "UPDATE persons SET name = $1 WHERE name = $2", newName, oldName)
	if isUniqueViolation(err) {
		return fmt.Errorf("rename person to %q: %w", newName, store.ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("rename person: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename person: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rename person %q: %w", oldName, store.ErrNotFound)
	}

	r.hnswMu.RLock()
	if r.hnswEnabled && r.hnswIndex != nil {
		if p, err := r.GetPerson(ctx, newName); err == nil {
			r.hnswIndex.Rename(p.ID, newName)
		}
	}
	r.hnswMu.RUnlock()

	return nil
}

// TopK finds the k nearest enrolled embeddings by cosine similarity.
// Uses the in-memory HNSW index if enabled, otherwise pgvector.
func (r *PersonRepository) TopK(ctx context.Context, embedding []float32, k int) ([]store.Neighbor, error) {
	r.hnswMu.RLock()
	hnswEnabled := r.hnswEnabled && r.hnswIndex != nil && !r.hnswIndex.IsEmpty()
	r.hnswMu.RUnlock()

	if hnswEnabled {
		return r.hnswIndex.Search(embedding, k)
	}
	return r.topKPostgres(ctx, embedding, k)
}

// topKPostgres ranks with pgvector's cosine distance operator; similarity
// is 1 - distance since enrolled vectors are unit-norm.
func (r *PersonRepository) topKPostgres(ctx context.Context, embedding []float32, k int) ([]store.Neighbor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, 1 - (e.embedding <=> $1::vector) AS similarity
		FROM person_embeddings e
		JOIN persons p ON p.id = e.person_id
		ORDER BY e.embedding <=> $1::vector
		LIMIT $2
	`, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("query similar embeddings: %w", err)
	}
	defer rows.Close()

	var neighbors []store.Neighbor
	for rows.Next() {
		var n store.Neighbor
		if err := rows.Scan(&n.PersonID, &n.Name, &n.Similarity); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbors: %w", err)
	}
	return neighbors, nil
}

// GetAllEmbeddings retrieves all embedding rows joined with their persons.
func (r *PersonRepository) GetAllEmbeddings(ctx context.Context) ([]store.StoredEmbedding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.person_id, p.name, e.embedding, e.model, e.dim, e.created_at
		FROM person_embeddings e
		JOIN persons p ON p.id = e.person_id
		ORDER BY e.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query all embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []store.StoredEmbedding
	for rows.Next() {
		var emb store.StoredEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&emb.ID, &emb.PersonID, &emb.Name, &vec, &emb.Model, &emb.Dim, &emb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		emb.Embedding = vec.Slice()
		embeddings = append(embeddings, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return embeddings, nil
}

// embeddingStats returns the row count and max id used for index staleness checks.
func (r *PersonRepository) embeddingStats(ctx context.Context) (count, maxID int64, err error) {
	err = r.pool.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(MAX(id), 0) FROM person_embeddings",
	).Scan(&count, &maxID)
	if err != nil {
		return 0, 0, fmt.Errorf("embedding stats: %w", err)
	}
	return count, maxID, nil
}

// tryLoadIndex attempts to load a fresh HNSW index from disk.
func (r *PersonRepository) tryLoadIndex(indexPath string, count, maxID int64) bool {
	metadata, err := store.LoadHNSWMetadata(indexPath)
	if err != nil {
		r.log.Debug().Err(err).Msg("no usable index metadata, rebuilding")
		return false
	}
	if metadata.EmbeddingCount != count || metadata.MaxEmbeddingID != maxID {
		r.log.Info().
			Int64("db_count", count).
			Int64("cached_count", metadata.EmbeddingCount).
			Msg("HNSW index stale, rebuilding")
		return false
	}

	idx := store.NewHNSWIndex()
	if err := idx.LoadWithMetadata(indexPath); err != nil {
		r.log.Warn().Err(err).Msg("failed to load HNSW index, rebuilding")
		return false
	}
	if idx.IsEmpty() {
		return false
	}
	r.hnswIndex = idx
	r.log.Info().Int("embeddings", idx.Count()).Msg("HNSW index loaded from disk")
	return true
}

// EnableHNSW loads or builds the in-memory HNSW index. Called once at
// startup; with an indexPath the index is persisted for fast restarts.
func (r *PersonRepository) EnableHNSW(ctx context.Context, indexPath string) error {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()

	r.hnswIndexPath = indexPath

	count, maxID, err := r.embeddingStats(ctx)
	if err != nil {
		return err
	}

	if indexPath != "" && r.tryLoadIndex(indexPath, count, maxID) {
		r.hnswEnabled = true
		return nil
	}

	embeddings, err := r.GetAllEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load embeddings: %w", err)
	}

	r.hnswIndex = store.NewHNSWIndex()
	if err := r.hnswIndex.BuildFromEmbeddings(embeddings); err != nil {
		return fmt.Errorf("failed to build HNSW index: %w", err)
	}

	if indexPath != "" && len(embeddings) > 0 {
		metadata := store.HNSWIndexMetadata{
			EmbeddingCount: count,
			MaxEmbeddingID: maxID,
			BuildTime:      time.Now(),
		}
		if err := r.hnswIndex.SaveWithMetadata(indexPath, metadata); err != nil {
			r.log.Warn().Err(err).Msg("failed to persist HNSW index")
		}
	}

	r.hnswEnabled = true
	r.log.Info().Int("embeddings", r.hnswIndex.Count()).Msg("HNSW index ready")
	return nil
}

// SaveHNSWIndex saves the current HNSW index to disk (if path configured).
func (r *PersonRepository) SaveHNSWIndex(ctx context.Context) error {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndexPath == "" || r.hnswIndex == nil {
		return nil
	}

	count, maxID, err := r.embeddingStats(ctx)
	if err != nil {
		return err
	}

	metadata := store.HNSWIndexMetadata{
		EmbeddingCount: count,
		MaxEmbeddingID: maxID,
		BuildTime:      time.Now(),
	}
	if err := r.hnswIndex.SaveWithMetadata(r.hnswIndexPath, metadata); err != nil {
		return fmt.Errorf("saving HNSW index: %w", err)
	}
	return nil
}

// HNSWCount returns the number of embeddings in the HNSW index.
func (r *PersonRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// Verify interface compliance
var _ store.VectorSearcher = (*PersonRepository)(nil)
var _ store.PersonReader = (*PersonRepository)(nil)
var _ store.PersonWriter = (*PersonRepository)(nil)
