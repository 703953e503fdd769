package domain

import (
	"fmt"
	"time"
)

// Embedding represents a stored vector for a document or one of its chunks
type Embedding struct {
	ID                  string
	DocumentID          string
	Embedding           []float32
	EmbeddingModel      string
	EmbeddingDimensions int
	ChunkText           string
	ChunkIndex          *int // nil for whole-document vectors
	ProcessingTimeMs    *int64
	CreatedAt           time.Time
	IsActive            bool
}

// ValidateEmbedding validates an Embedding instance
func ValidateEmbedding(e *Embedding) error {
	if e == nil {
		return fmt.Errorf("embedding cannot be nil")
	}

	if e.ID == "" {
		return fmt.Errorf("embedding ID is required")
	}

	if e.DocumentID == "" {
		return fmt.Errorf("embedding DocumentID is required")
	}

	if len(e.Embedding) == 0 {
		return fmt.Errorf("embedding vector is required")
	}

	if e.EmbeddingModel == "" {
		return fmt.Errorf("embedding EmbeddingModel is required")
	}

	if e.EmbeddingDimensions != len(e.Embedding) {
		return fmt.Errorf("embedding EmbeddingDimensions (%d) does not match vector length (%d)",
			e.EmbeddingDimensions, len(e.Embedding))
	}

	if e.ChunkIndex != nil && *e.ChunkIndex < 0 {
		return fmt.Errorf("embedding ChunkIndex cannot be negative")
	}

	return nil
}

// EmbeddingJobStatus represents the status of an embedding job
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending   EmbeddingJobStatus = "pending"
	EmbeddingJobStatusRunning   EmbeddingJobStatus = "running"
	EmbeddingJobStatusSucceeded EmbeddingJobStatus = "succeeded"
	EmbeddingJobStatusFailed    EmbeddingJobStatus = "failed"
)

// EmbeddingJob represents an async embedding generation job for one document
type EmbeddingJob struct {
	ID          string
	DocumentID  string
	Status      EmbeddingJobStatus
	Attempts    int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewEmbeddingJob creates a pending EmbeddingJob for a document
func NewEmbeddingJob(id, documentID string, createdAt time.Time) *EmbeddingJob {
	return &EmbeddingJob{
		ID:         id,
		DocumentID: documentID,
		Status:     EmbeddingJobStatusPending,
		Attempts:   0,
		Error:      "",
		CreatedAt:  createdAt,
	}
}

// ValidateEmbeddingJob validates an EmbeddingJob instance
func ValidateEmbeddingJob(j *EmbeddingJob) error {
	if j == nil {
		return fmt.Errorf("embedding job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("embedding job ID is required")
	}

	if j.DocumentID == "" {
		return fmt.Errorf("embedding job DocumentID is required")
	}

	if !isValidEmbeddingJobStatus(j.Status) {
		return fmt.Errorf("embedding job Status is invalid: %s", j.Status)
	}

	if j.Attempts < 0 {
		return fmt.Errorf("embedding job Attempts cannot be negative")
	}

	return nil
}

// isValidEmbeddingJobStatus checks if an EmbeddingJobStatus is valid
func isValidEmbeddingJobStatus(s EmbeddingJobStatus) bool {
	switch s {
	case EmbeddingJobStatusPending, EmbeddingJobStatusRunning,
		EmbeddingJobStatusSucceeded, EmbeddingJobStatusFailed:
		return true
	}
	return false
}
