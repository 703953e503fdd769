package service

import (
	"context"
	"fmt"
	"time"

	"github.com/docstore-ai/docstore/internal/domain"
	"github.com/docstore-ai/docstore/internal/telemetry"
)

// EmbeddingRepositoryInterface defines the repository interface for embedding persistence
type EmbeddingRepositoryInterface interface {
	Create(ctx context.Context, e *domain.Embedding) error
	GetByID(ctx context.Context, id string) (*domain.Embedding, error)
	HasActiveEmbedding(ctx context.Context, documentID string) (bool, error)
	ListByDocument(ctx context.Context, documentID string) ([]*domain.Embedding, error)
	DeactivateByDocument(ctx context.Context, documentID string) (int64, error)
	SearchByVector(ctx context.Context, embedding []float32, limit int, documentIDs []string) ([]*VectorHit, error)
	Aggregate(ctx context.Context, since time.Time) (*EmbeddingAggregate, error)
}

// VectorHit is a raw ANN match before document enrichment.
type VectorHit struct {
	EmbeddingID    string
	DocumentID     string
	EmbeddingModel string
	ChunkText      string
	ChunkIndex     *int
	Score          float64
}

// EmbeddingAggregate holds embedding-side counters for enhanced stats.
type EmbeddingAggregate struct {
	TotalEmbeddings         int
	TotalChunks             int
	DocumentsWithEmbeddings int
	CreatedSince            int
	Models                  map[string]int
}

// EmbeddingResult is a generated vector plus provider metadata.
type EmbeddingResult struct {
	Vector           []float32
	Model            string
	ProcessingTimeMs int64
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) (*EmbeddingResult, error)
}

// ProcessorHealth reports the embedding service's model status.
type ProcessorHealth struct {
	Status      string
	Model       string
	ModelLoaded bool
}

// DocumentProcessor delegates chunked document processing to the embedding
// service, which fetches the document and posts vectors back.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, documentID string, useChunking bool, chunkSize int) error
	Health(ctx context.Context) (*ProcessorHealth, error)
}

// EmbeddingService orchestrates embedding generation and storage for documents
type EmbeddingService struct {
	client       EmbeddingClient
	processor    DocumentProcessor
	docRepo      DocumentRepositoryInterface
	embRepo      EmbeddingRepositoryInterface
	txRunner     TxRunner
	uuidGen      UUIDGenerator
	defaultModel string
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(
	client EmbeddingClient,
	docRepo DocumentRepositoryInterface,
	embRepo EmbeddingRepositoryInterface,
	txRunner TxRunner,
	defaultModel string,
) *EmbeddingService {
	return &EmbeddingService{
		client:       client,
		docRepo:      docRepo,
		embRepo:      embRepo,
		txRunner:     txRunner,
		uuidGen:      &DefaultUUIDGenerator{},
		defaultModel: defaultModel,
	}
}

// WithProcessor enables the chunked processing path.
func (s *EmbeddingService) WithProcessor(p DocumentProcessor) *EmbeddingService {
	s.processor = p
	return s
}

// WithUUIDGen replaces the UUID generator (for testing).
func (s *EmbeddingService) WithUUIDGen(gen UUIDGenerator) *EmbeddingService {
	s.uuidGen = gen
	return s
}

// GenerateEmbedding generates and stores an embedding for the given document.
// Called by the background worker. A document that already carries an active
// embedding is a no-op, which makes duplicate job executions safe.
func (s *EmbeddingService) GenerateEmbedding(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingService.GenerateEmbedding", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "generate_embedding",
	})
	defer span.End()

	exists, err := s.embRepo.HasActiveEmbedding(ctx, documentID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	started := time.Now()
	result, err := s.client.GenerateEmbedding(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	model := result.Model
	if model == "" {
		model = s.defaultModel
	}
	processingTime := result.ProcessingTimeMs
	if processingTime == 0 {
		processingTime = time.Since(started).Milliseconds()
	}

	now := time.Now().UTC()
	embedding := &domain.Embedding{
		ID:                  s.uuidGen.NewString(),
		DocumentID:          documentID,
		Embedding:           result.Vector,
		EmbeddingModel:      model,
		EmbeddingDimensions: len(result.Vector),
		ProcessingTimeMs:    &processingTime,
		CreatedAt:           now,
		IsActive:            true,
	}
	if err := domain.ValidateEmbedding(embedding); err != nil {
		return err
	}

	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Embeddings().Create(ctx, embedding); err != nil {
			return err
		}
		return repos.Documents().MarkHasEmbedding(ctx, documentID, now)
	})
}

// CreateEmbeddingInput represents an externally generated vector to store.
// The embedding service posts these back after chunked processing.
type CreateEmbeddingInput struct {
	DocumentID       string
	Vector           []float32
	Model            string
	Dimensions       int
	ChunkText        string
	ChunkIndex       *int
	ProcessingTimeMs *int64
}

// CreateEmbedding validates and stores a vector supplied by a caller,
// flipping the document's embedding flag in the same transaction.
func (s *EmbeddingService) CreateEmbedding(ctx context.Context, input CreateEmbeddingInput) (*domain.Embedding, error) {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingService.CreateEmbedding", telemetry.SpanAttributes{
		DocumentID: input.DocumentID,
		Operation:  "create_embedding",
	})
	defer span.End()

	if input.DocumentID == "" {
		return nil, domain.NewValidationError("documentId is required")
	}
	if len(input.Vector) == 0 {
		return nil, domain.NewValidationError("embedding is required")
	}

	if _, err := s.docRepo.GetByID(ctx, input.DocumentID); err != nil {
		return nil, err
	}

	model := input.Model
	if model == "" {
		model = s.defaultModel
	}
	dimensions := input.Dimensions
	if dimensions == 0 {
		dimensions = len(input.Vector)
	}

	now := time.Now().UTC()
	embedding := &domain.Embedding{
		ID:                  s.uuidGen.NewString(),
		DocumentID:          input.DocumentID,
		Embedding:           input.Vector,
		EmbeddingModel:      model,
		EmbeddingDimensions: dimensions,
		ChunkText:           input.ChunkText,
		ChunkIndex:          input.ChunkIndex,
		ProcessingTimeMs:    input.ProcessingTimeMs,
		CreatedAt:           now,
		IsActive:            true,
	}
	if err := domain.ValidateEmbedding(embedding); err != nil {
		if _, ok := err.(*domain.DomainError); ok {
			return nil, err
		}
		return nil, domain.NewValidationError(err.Error())
	}

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Embeddings().Create(ctx, embedding); err != nil {
			return err
		}
		return repos.Documents().MarkHasEmbedding(ctx, input.DocumentID, now)
	})
	if err != nil {
		return nil, err
	}

	return embedding, nil
}

// ProcessWithChunking hands a document to the embedding service for chunked
// processing. The service fetches the content and posts vectors back.
func (s *EmbeddingService) ProcessWithChunking(ctx context.Context, documentID string, chunkSize int) error {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingService.ProcessWithChunking", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "process_chunking",
	})
	defer span.End()

	if s.processor == nil {
		return domain.ErrEmbedServiceUnconfigured
	}
	if documentID == "" {
		return domain.NewValidationError("documentId is required")
	}

	if _, err := s.docRepo.GetByID(ctx, documentID); err != nil {
		return err
	}

	return s.processor.ProcessDocument(ctx, documentID, true, chunkSize)
}

// ListByDocument returns a document's active embeddings.
func (s *EmbeddingService) ListByDocument(ctx context.Context, documentID string) ([]*domain.Embedding, error) {
	if documentID == "" {
		return nil, domain.NewValidationError("documentId is required")
	}
	return s.embRepo.ListByDocument(ctx, documentID)
}

// ServiceHealth reports the embedding service's model status.
func (s *EmbeddingService) ServiceHealth(ctx context.Context) (*ProcessorHealth, error) {
	if s.processor == nil {
		return nil, domain.ErrEmbedServiceUnconfigured
	}
	return s.processor.Health(ctx)
}
