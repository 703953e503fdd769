package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/docstore-ai/docstore/internal/domain"
)

// claimBatchSize caps how many jobs one poll cycle claims.
const claimBatchSize = 100

// EmbeddingJobRepository defines the interface for embedding job persistence
type EmbeddingJobRepository interface {
	// ClaimPending atomically claims up to limit pending jobs, moving them
	// to running.
	ClaimPending(ctx context.Context, limit int) ([]*domain.EmbeddingJob, error)

	// UpdateStatus records a job's terminal state.
	UpdateStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error
}

// EmbeddingGenerator defines the interface for generating document embeddings
type EmbeddingGenerator interface {
	GenerateEmbedding(ctx context.Context, documentID string) error
}

// EmbeddingWorker drains claimed embedding jobs. Failures are terminal:
// the job is marked failed with its error and is never retried, so a
// document that keeps failing needs a new save or an explicit re-enqueue.
type EmbeddingWorker struct {
	repo    EmbeddingJobRepository
	service EmbeddingGenerator
}

// NewEmbeddingWorker creates a new EmbeddingWorker instance
func NewEmbeddingWorker(repo EmbeddingJobRepository, service EmbeddingGenerator) *EmbeddingWorker {
	return &EmbeddingWorker{
		repo:    repo,
		service: service,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EmbeddingWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("processing %d embedding jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *EmbeddingWorker) processJob(ctx context.Context, job *domain.EmbeddingJob) error {
	log.Printf("processing job %s for document %s", job.ID, job.DocumentID)

	if err := w.service.GenerateEmbedding(ctx, job.DocumentID); err != nil {
		log.Printf("job %s failed: %v", job.ID, err)
		if updateErr := w.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, err.Error()); updateErr != nil {
			return fmt.Errorf("failed to update job status to failed: %w", updateErr)
		}
		return nil
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusSucceeded, ""); err != nil {
		return fmt.Errorf("failed to update job status to succeeded: %w", err)
	}

	log.Printf("job %s succeeded", job.ID)
	return nil
}
