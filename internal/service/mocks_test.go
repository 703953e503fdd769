package service

import (
	"context"
	"time"

	"github.com/docstore-ai/docstore/internal/domain"
	"github.com/docstore-ai/docstore/internal/pagination"
	"github.com/stretchr/testify/mock"
)

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentPageResult), args.Error(1)
}

func (m *MockDocumentRepository) Update(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) MarkHasEmbedding(ctx context.Context, id string, now time.Time) error {
	args := m.Called(ctx, id, now)
	return args.Error(0)
}

func (m *MockDocumentRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	args := m.Called(ctx, id, now)
	return args.Error(0)
}

func (m *MockDocumentRepository) Stats(ctx context.Context) (*domain.DocumentStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentStats), args.Error(1)
}

func (m *MockDocumentRepository) CountUploadedSince(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

// MockEmbeddingRepository is a mock implementation of EmbeddingRepositoryInterface
type MockEmbeddingRepository struct {
	mock.Mock
}

func (m *MockEmbeddingRepository) Create(ctx context.Context, e *domain.Embedding) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEmbeddingRepository) GetByID(ctx context.Context, id string) (*domain.Embedding, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Embedding), args.Error(1)
}

func (m *MockEmbeddingRepository) HasActiveEmbedding(ctx context.Context, documentID string) (bool, error) {
	args := m.Called(ctx, documentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEmbeddingRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Embedding, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Embedding), args.Error(1)
}

func (m *MockEmbeddingRepository) DeactivateByDocument(ctx context.Context, documentID string) (int64, error) {
	args := m.Called(ctx, documentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEmbeddingRepository) SearchByVector(ctx context.Context, embedding []float32, limit int, documentIDs []string) ([]*VectorHit, error) {
	args := m.Called(ctx, embedding, limit, documentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*VectorHit), args.Error(1)
}

func (m *MockEmbeddingRepository) Aggregate(ctx context.Context, since time.Time) (*EmbeddingAggregate, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*EmbeddingAggregate), args.Error(1)
}

// MockEmbeddingJobRepository is a mock implementation of EmbeddingJobRepositoryInterface
type MockEmbeddingJobRepository struct {
	mock.Mock
}

func (m *MockEmbeddingJobRepository) Create(ctx context.Context, job *domain.EmbeddingJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockEmbeddingJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.EmbeddingJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmbeddingJob), args.Error(1)
}

func (m *MockEmbeddingJobRepository) UpdateStatus(ctx context.Context, id string, status domain.EmbeddingJobStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockEmbeddingJobRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.EmbeddingJob, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmbeddingJob), args.Error(1)
}

func (m *MockEmbeddingJobRepository) CountByStatus(ctx context.Context) (map[domain.EmbeddingJobStatus]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.EmbeddingJobStatus]int), args.Error(1)
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) (*EmbeddingResult, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*EmbeddingResult), args.Error(1)
}

// MockDocumentProcessor is a mock implementation of DocumentProcessor
type MockDocumentProcessor struct {
	mock.Mock
}

func (m *MockDocumentProcessor) ProcessDocument(ctx context.Context, documentID string, useChunking bool, chunkSize int) error {
	args := m.Called(ctx, documentID, useChunking, chunkSize)
	return args.Error(0)
}

func (m *MockDocumentProcessor) Health(ctx context.Context) (*ProcessorHealth, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProcessorHealth), args.Error(1)
}

// fakeTxRunner runs the callback against the provided repositories with no
// real transaction semantics.
type fakeTxRunner struct {
	repos fakeTxRepos
	err   error
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(&f.repos)
}

type fakeTxRepos struct {
	docs DocumentRepositoryInterface
	embs EmbeddingRepositoryInterface
	jobs EmbeddingJobRepositoryInterface
}

func (f *fakeTxRepos) Documents() DocumentRepositoryInterface         { return f.docs }
func (f *fakeTxRepos) Embeddings() EmbeddingRepositoryInterface       { return f.embs }
func (f *fakeTxRepos) EmbeddingJobs() EmbeddingJobRepositoryInterface { return f.jobs }

// MockUUIDGenerator returns a scripted sequence of IDs.
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		id := m.uuids[m.callCount]
		m.callCount++
		return id
	}
	return "default-uuid"
}
