package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/docstore-ai/docstore/internal/domain"
	"github.com/docstore-ai/docstore/internal/pagination"
	"github.com/docstore-ai/docstore/internal/telemetry"
	"github.com/google/uuid"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	Update(ctx context.Context, d *domain.Document) error
	MarkHasEmbedding(ctx context.Context, id string, now time.Time) error
	SoftDelete(ctx context.Context, id string, now time.Time) error
	Stats(ctx context.Context) (*domain.DocumentStats, error)
	CountUploadedSince(ctx context.Context, since time.Time) (int, error)
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// EmbeddingJobRepositoryInterface defines the repository interface for embedding job persistence
type EmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
	ClaimPending(ctx context.Context, limit int) ([]*domain.EmbeddingJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.EmbeddingJobStatus, errMsg string) error
	ListByDocument(ctx context.Context, documentID string) ([]*domain.EmbeddingJob, error)
	CountByStatus(ctx context.Context) (map[domain.EmbeddingJobStatus]int, error)
}

// ArchiveStore persists raw document content to object storage. Optional.
type ArchiveStore interface {
	ArchiveDocument(ctx context.Context, d *domain.Document) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DocumentService handles business logic for documents
type DocumentService struct {
	docRepo  DocumentRepositoryInterface
	embRepo  EmbeddingRepositoryInterface
	jobRepo  EmbeddingJobRepositoryInterface
	txRunner TxRunner
	archive  ArchiveStore
	uuidGen  UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(
	docRepo DocumentRepositoryInterface,
	embRepo EmbeddingRepositoryInterface,
	jobRepo EmbeddingJobRepositoryInterface,
	txRunner TxRunner,
) *DocumentService {
	return &DocumentService{
		docRepo:  docRepo,
		embRepo:  embRepo,
		jobRepo:  jobRepo,
		txRunner: txRunner,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// WithArchive enables raw-content archival to object storage.
func (s *DocumentService) WithArchive(archive ArchiveStore) *DocumentService {
	s.archive = archive
	return s
}

// WithUUIDGen replaces the UUID generator (for testing).
func (s *DocumentService) WithUUIDGen(gen UUIDGenerator) *DocumentService {
	s.uuidGen = gen
	return s
}

// SaveInput represents the input for saving a document
type SaveInput struct {
	Title       string
	Content     string
	ContentType string
	Tags        []string
	Summary     string
}

// UpdateInput represents a partial document update. Nil fields are left
// unchanged.
type UpdateInput struct {
	Title       *string
	Content     *string
	ContentType *string
	Tags        []string
	Summary     *string
}

type ListInput struct {
	Cursor string
	Limit  int
}

type ListOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

func validateSaveInput(input SaveInput) error {
	if input.Title == "" || input.Content == "" || input.ContentType == "" {
		return domain.ErrMissingRequiredField
	}
	if !domain.IsValidContentType(domain.ContentType(input.ContentType)) {
		return domain.ErrInvalidContentType
	}
	if domain.ContentSize(input.Content) > domain.MaxContentBytes {
		return domain.ErrContentTooLarge
	}
	return nil
}

// Save validates and persists a document, queueing an embedding job in the
// same transaction.
func (s *DocumentService) Save(ctx context.Context, input SaveInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Save", telemetry.SpanAttributes{
		Operation: "save",
	})
	defer span.End()

	if err := validateSaveInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := domain.NewDocument(
		s.uuidGen.NewString(),
		input.Title,
		input.Content,
		domain.ContentType(input.ContentType),
		input.Tags,
		input.Summary,
		now,
	)
	job := domain.NewEmbeddingJob(s.uuidGen.NewString(), doc.ID, now)

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.EmbeddingJobs().Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	s.archiveAsync(doc)

	return doc, nil
}

// SaveBatch persists several documents atomically. Every item is validated
// before anything is written; a single invalid item rejects the whole batch.
func (s *DocumentService) SaveBatch(ctx context.Context, inputs []SaveInput) ([]*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.SaveBatch", telemetry.SpanAttributes{
		Operation: "save_batch",
	})
	defer span.End()

	if len(inputs) == 0 {
		return nil, domain.NewValidationError("documents array is required")
	}

	var validationErrors []string
	for i, input := range inputs {
		if err := validateSaveInput(input); err != nil {
			var msg string
			if de, ok := err.(*domain.DomainError); ok {
				msg = de.Message
			} else {
				msg = err.Error()
			}
			validationErrors = append(validationErrors, fmt.Sprintf("Document %d: %s", i+1, msg))
		}
	}
	if len(validationErrors) > 0 {
		return nil, domain.NewValidationError(strings.Join(validationErrors, "; "))
	}

	now := time.Now().UTC()
	docs := make([]*domain.Document, 0, len(inputs))
	jobs := make([]*domain.EmbeddingJob, 0, len(inputs))
	for _, input := range inputs {
		doc := domain.NewDocument(
			s.uuidGen.NewString(),
			input.Title,
			input.Content,
			domain.ContentType(input.ContentType),
			input.Tags,
			input.Summary,
			now,
		)
		docs = append(docs, doc)
		jobs = append(jobs, domain.NewEmbeddingJob(s.uuidGen.NewString(), doc.ID, now))
	}

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		for i := range docs {
			if err := repos.Documents().Create(ctx, docs[i]); err != nil {
				return err
			}
			if err := repos.EmbeddingJobs().Create(ctx, jobs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		s.archiveAsync(doc)
	}

	return docs, nil
}

// GetByID retrieves an active document by ID
func (s *DocumentService) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.GetByID", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "get",
	})
	defer span.End()

	return s.docRepo.GetByID(ctx, id)
}

// Update applies a partial update. A content change recomputes the derived
// fields, retires existing embeddings, and queues a fresh embedding job.
func (s *DocumentService) Update(ctx context.Context, id string, input UpdateInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Update", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "update",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if input.Title != nil {
		if *input.Title == "" {
			return nil, domain.NewValidationError("title cannot be empty")
		}
		doc.Title = *input.Title
	}
	if input.Content != nil {
		if *input.Content == "" {
			return nil, domain.NewValidationError("content cannot be empty")
		}
		if domain.ContentSize(*input.Content) > domain.MaxContentBytes {
			return nil, domain.ErrContentTooLarge
		}
		contentChanged = *input.Content != doc.Content
		doc.Content = *input.Content
	}
	if input.ContentType != nil {
		if !domain.IsValidContentType(domain.ContentType(*input.ContentType)) {
			return nil, domain.ErrInvalidContentType
		}
		doc.ContentType = domain.ContentType(*input.ContentType)
	}
	if input.Tags != nil {
		doc.Tags = input.Tags
	}
	if input.Summary != nil {
		doc.Summary = *input.Summary
	}

	now := time.Now().UTC()
	doc.LastModified = now

	if !contentChanged {
		if err := s.docRepo.Update(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	// New content invalidates stored vectors. Retire them and queue a
	// fresh job in the same transaction as the document update.
	doc.RecomputeDerived()
	doc.HasEmbedding = false
	job := domain.NewEmbeddingJob(s.uuidGen.NewString(), doc.ID, now)

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Update(ctx, doc); err != nil {
			return err
		}
		if _, err := repos.Embeddings().DeactivateByDocument(ctx, doc.ID); err != nil {
			return err
		}
		return repos.EmbeddingJobs().Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	s.archiveAsync(doc)

	return doc, nil
}

// Delete soft-deletes a document. Embedding rows are kept but stop matching
// searches once the document is inactive.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	return s.docRepo.SoftDelete(ctx, id, time.Now().UTC())
}

// List returns a page of active documents, newest first.
func (s *DocumentService) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.List", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewValidationError("invalid cursor")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.docRepo.ListWithCursor(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// Stats returns corpus-level document counters.
func (s *DocumentService) Stats(ctx context.Context) (*domain.DocumentStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Stats", telemetry.SpanAttributes{
		Operation: "stats",
	})
	defer span.End()

	return s.docRepo.Stats(ctx)
}

// EnhancedStats combines document counters with embedding coverage and
// 24-hour activity.
func (s *DocumentService) EnhancedStats(ctx context.Context) (*domain.EnhancedDocumentStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.EnhancedStats", telemetry.SpanAttributes{
		Operation: "stats_enhanced",
	})
	defer span.End()

	docStats, err := s.docRepo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	agg, err := s.embRepo.Aggregate(ctx, since)
	if err != nil {
		return nil, err
	}

	uploads, err := s.docRepo.CountUploadedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	stats := &domain.EnhancedDocumentStats{
		DocumentStats:           *docStats,
		TotalEmbeddings:         agg.TotalEmbeddings,
		TotalChunks:             agg.TotalChunks,
		DocumentsWithEmbeddings: agg.DocumentsWithEmbeddings,
		EmbeddingModels:         agg.Models,
		UploadsLast24h:          uploads,
		EmbeddingsLast24h:       agg.CreatedSince,
	}
	stats.DocumentsWithoutEmbeddings = docStats.TotalDocuments - agg.DocumentsWithEmbeddings
	if stats.DocumentsWithoutEmbeddings < 0 {
		stats.DocumentsWithoutEmbeddings = 0
	}
	if docStats.TotalDocuments > 0 {
		stats.EmbeddingCoveragePercent = agg.DocumentsWithEmbeddings * 100 / docStats.TotalDocuments
	}
	if agg.DocumentsWithEmbeddings > 0 {
		stats.AverageEmbeddingsPerDocument = agg.TotalEmbeddings / agg.DocumentsWithEmbeddings
	}

	return stats, nil
}

// ListJobs returns a document's embedding jobs, newest first.
func (s *DocumentService) ListJobs(ctx context.Context, documentID string) ([]*domain.EmbeddingJob, error) {
	if _, err := s.docRepo.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	return s.jobRepo.ListByDocument(ctx, documentID)
}

// archiveAsync pushes raw content to object storage without blocking the
// request. Archival failures are logged, never surfaced.
func (s *DocumentService) archiveAsync(doc *domain.Document) {
	if s.archive == nil {
		return
	}
	go func(d domain.Document) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.archive.ArchiveDocument(ctx, &d); err != nil {
			log.Printf("archive: failed to store document %s: %v", d.ID, err)
		}
	}(*doc)
}
