package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docstore-ai/docstore/internal/config"
	"github.com/docstore-ai/docstore/internal/database"
	"github.com/docstore-ai/docstore/internal/domain"
	"github.com/docstore-ai/docstore/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// StatsCmd returns the stats command, an operator view of corpus size and
// embedding job health without going through the HTTP API.
func StatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and job statistics",
		Long:  "Print document counters and embedding job counts by status",
		RunE:  runStats,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	docRepo := repository.NewDocumentRepository(pool)
	jobRepo := repository.NewEmbeddingJobRepository(pool)

	stats, err := docRepo.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load document stats: %w", err)
	}

	jobCounts, err := jobRepo.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count embedding jobs: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"totalDocuments": stats.TotalDocuments,
			"totalWords":     stats.TotalWords,
			"totalSize":      stats.TotalSize,
			"contentTypes":   stats.ContentTypes,
			"jobs":           jobStatusMap(jobCounts),
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	fmt.Printf("Documents: %d (%d words, %d bytes)\n", stats.TotalDocuments, stats.TotalWords, stats.TotalSize)
	for contentType, count := range stats.ContentTypes {
		fmt.Printf("  %s: %d\n", contentType, count)
	}
	fmt.Println("Embedding jobs:")
	for _, status := range []domain.EmbeddingJobStatus{
		domain.EmbeddingJobStatusPending,
		domain.EmbeddingJobStatusRunning,
		domain.EmbeddingJobStatusSucceeded,
		domain.EmbeddingJobStatusFailed,
	} {
		fmt.Printf("  %s: %d\n", status, jobCounts[status])
	}

	return nil
}

func jobStatusMap(counts map[domain.EmbeddingJobStatus]int) map[string]int {
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return pool, nil
}
