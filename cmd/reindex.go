package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the on-disk HNSW index from the database",
	Long: `Rebuild the in-memory HNSW similarity index from all embeddings in
PostgreSQL and persist it to HNSW_INDEX_PATH, so the next kiosk start with
--hnsw skips the build.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	indexPath := a.cfg.Database.HNSWIndexPath
	if indexPath == "" {
		return fmt.Errorf("HNSW_INDEX_PATH is required for reindex")
	}

	ctx := context.Background()
	embeddings, err := a.persons.GetAllEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("loading embeddings: %w", err)
	}
	if len(embeddings) == 0 {
		fmt.Println("No embeddings to index.")
		return nil
	}

	bar := progressbar.Default(int64(len(embeddings)), "indexing")
	index := store.NewHNSWIndex()
	var maxID int64
	for i := range embeddings {
		emb := embeddings[i]
		index.Add(&emb)
		if emb.ID > maxID {
			maxID = emb.ID
		}
		_ = bar.Add(1)
	}

	metadata := store.HNSWIndexMetadata{
		EmbeddingCount: int64(len(embeddings)),
		MaxEmbeddingID: maxID,
		BuildTime:      time.Now(),
	}
	if err := index.SaveWithMetadata(indexPath, metadata); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}

	fmt.Printf("Indexed %d embeddings to %s\n", index.Count(), indexPath)
	return nil
}
