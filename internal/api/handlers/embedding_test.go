package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docstore-ai/docstore/internal/domain"
	"github.com/docstore-ai/docstore/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEmbeddingService struct {
	mock.Mock
}

func (m *MockEmbeddingService) GenerateEmbedding(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func (m *MockEmbeddingService) CreateEmbedding(ctx context.Context, input service.CreateEmbeddingInput) (*domain.Embedding, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Embedding), args.Error(1)
}

func (m *MockEmbeddingService) ProcessWithChunking(ctx context.Context, documentID string, chunkSize int) error {
	args := m.Called(ctx, documentID, chunkSize)
	return args.Error(0)
}

func (m *MockEmbeddingService) ListByDocument(ctx context.Context, documentID string) ([]*domain.Embedding, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Embedding), args.Error(1)
}

func (m *MockEmbeddingService) ServiceHealth(ctx context.Context) (*service.ProcessorHealth, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProcessorHealth), args.Error(1)
}

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.SearchResult), args.Error(1)
}

func newTestEmbedding() *domain.Embedding {
	return &domain.Embedding{
		ID:                  "emb-1",
		DocumentID:          "doc-123",
		Embedding:           []float32{0.1, 0.2, 0.3},
		EmbeddingModel:      "sentence-transformers/all-distilroberta-v1",
		EmbeddingDimensions: 3,
		CreatedAt:           time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		IsActive:            true,
	}
}

func TestEmbeddingHandler_Generate_Success(t *testing.T) {
	mockSvc := new(MockEmbeddingService)
	handler := NewEmbeddingHandler(mockSvc, new(MockSearchService))

	mockSvc.On("GenerateEmbedding", mock.Anything, "doc-123").Return(nil)

	body := `{"documentId":"doc-123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/embeddings/generate", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Generate(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"generated"`)
	mockSvc.AssertExpectations(t)
}

func TestEmbeddingHandler_Generate_MissingDocumentID(t *testing.T) {
	handler := NewEmbeddingHandler(new(MockEmbeddingService), new(MockSearchService))

	req := httptest.NewRequest(http.MethodPost, "/api/embeddings/generate", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	handler.Generate(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "documentId is required")
}

func TestEmbeddingHandler_Generate_DocumentNotFound(t *testing.T) {
	mockSvc := new(MockEmbeddingService)
	handler := NewEmbeddingHandler(mockSvc, new(MockSearchService))

	mockSvc.On("GenerateEmbedding", mock.Anything, "doc-999").Return(domain.ErrDocumentNotFound)

	body := `{"documentId":"doc-999"}`
	req := httptest.NewRequest(http.MethodPost, "/api/embeddings/generate", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Generate(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestEmbeddingHandler_Process_Success(t *testing.T) {
	mockSvc := new(MockEmbeddingService)
	handler := NewEmbeddingHandler(mockSvc, new(MockSearchService))

	mockSvc.On("ProcessWithChunking", mock.Anything, "doc-123", 512).Return(nil)

	body := `{"documentId":"doc-123","chunkSize":512}`
	req := httptest.NewRequest(http.MethodPost, "/api/embeddings/process", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Process(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"processing"`)
	mockSvc.AssertExpectations(t)
}

func TestEmbeddingHandler_Process_Unconfigured(t *testing.T) {
	mockSvc := new(MockEmbeddingService)
	handler := NewEmbeddingHandler(mockSvc, new(MockSearchService))

	mockSvc.On("ProcessWithChunking", mock.Anything, "doc-123", 0).
		Return(domain.ErrEmbedServiceUnconfigured)

	body := `{"documentId":"doc-123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/embeddings/process", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Process(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "embedding service URL not configured")
	mockSvc.AssertExpectations(t)
}

func TestEmbeddingHandler_Create_Success(t *testing.T) {
	mockSvc := new(MockEmbeddingService)
	handler := NewEmbeddingHandler(mockSvc, new(MockSearchService))

	chunkIndex := 0
	expected := newTestEmbedding()
	expected.ChunkText = "first chunk"
	expected.ChunkIndex = &chunkIndex

	mockSvc.On("CreateEmbedding", mock.Anything, mock.MatchedBy(func(input service.CreateEmbeddingInput) bool {
		return input.DocumentID == "doc-123" && len(input.Vector) == 3 &&
			input.Model == "text-embedding-3-small" && input.Dimensions == 3 &&
			input.ChunkIndex != nil && *input.ChunkIndex == 0
	})).Return(expected, nil)

	body := `{"documentId":"doc-123","embedding":[0.1,0.2,0.3],"embeddingModel":"text-embedding-3-small","embeddingDimensions":3,"chunkText":"first chunk","chunkIndex":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/embeddings", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "emb-1", data["id"])
	assert.Equal(t, "first chunk", data["chunkText"])
	mockSvc.AssertExpectations(t)
}

func TestEmbeddingHandler_Create_ShortFieldAliases(t *testing.T) {
	mockSvc := new(MockEmbeddingService)
	handler := NewEmbeddingHandler(mockSvc, new(MockSearchService))

	mockSvc.On("CreateEmbedding", mock.Anything, mock.MatchedBy(func(input service.CreateEmbeddingInput) bool {
		return input.Model == "text-embedding-3-small" && input.Dimensions == 3
	})).Return(newTestEmbedding(), nil)

	body := `{"documentId":"doc-123","embedding":[0.1,0.2,0.3],"model":"text-embedding-3-small","dimensions":3}`
	req := httptest.NewRequest(http.MethodPost, "/api/embeddings", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestEmbeddingHandler_Create_ValidationError(t *testing.T) {
	mockSvc := new(MockEmbeddingService)
	handler := NewEmbeddingHandler(mockSvc, new(MockSearchService))

	mockSvc.On("CreateEmbedding", mock.Anything, mock.Anything).
		Return(nil, domain.NewValidationError("embedding is required"))

	body := `{"documentId":"doc-123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/embeddings", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "embedding is required")
}

func TestEmbeddingHandler_ListByDocument_Success(t *testing.T) {
	mockSvc := new(MockEmbeddingService)
	handler := NewEmbeddingHandler(mockSvc, new(MockSearchService))

	mockSvc.On("ListByDocument", mock.Anything, "doc-123").
		Return([]*domain.Embedding{newTestEmbedding()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/embeddings?documentId=doc-123", nil)
	w := httptest.NewRecorder()

	handler.ListByDocument(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
	mockSvc.AssertExpectations(t)
}

func searchResults() []*service.SearchResult {
	return []*service.SearchResult{
		{
			Document:    newTestDocument(),
			Score:       0.93,
			EmbeddingID: "emb-1",
		},
	}
}

func TestEmbeddingHandler_Search_Post(t *testing.T) {
	mockSearch := new(MockSearchService)
	handler := NewEmbeddingHandler(new(MockEmbeddingService), mockSearch)

	mockSearch.On("Search", mock.Anything, service.SearchInput{
		Query:       "restart procedure",
		Limit:       5,
		DocumentIDs: []string{"doc-123"},
	}).Return(searchResults(), nil)

	body := `{"queryText":"restart procedure","limit":5,"documentIds":["doc-123"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/embeddings/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
	first := data["results"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, 0.93, first["score"])
	mockSearch.AssertExpectations(t)
}

func TestEmbeddingHandler_Search_QueryAliases(t *testing.T) {
	mockSearch := new(MockSearchService)
	handler := NewEmbeddingHandler(new(MockEmbeddingService), mockSearch)

	mockSearch.On("Search", mock.Anything, mock.MatchedBy(func(input service.SearchInput) bool {
		return input.Query == "aliased"
	})).Return([]*service.SearchResult{}, nil)

	body := `{"q":"aliased"}`
	req := httptest.NewRequest(http.MethodPost, "/api/embeddings/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSearch.AssertExpectations(t)
}

func TestEmbeddingHandler_Search_MissingQuery(t *testing.T) {
	mockSearch := new(MockSearchService)
	handler := NewEmbeddingHandler(new(MockEmbeddingService), mockSearch)

	mockSearch.On("Search", mock.Anything, mock.Anything).Return(nil, domain.ErrMissingQueryText)

	req := httptest.NewRequest(http.MethodPost, "/api/embeddings/search", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing queryText")
}

func TestEmbeddingHandler_SearchGet_ParsesParams(t *testing.T) {
	mockSearch := new(MockSearchService)
	handler := NewEmbeddingHandler(new(MockEmbeddingService), mockSearch)

	mockSearch.On("Search", mock.Anything, service.SearchInput{
		Query:       "vector databases",
		Limit:       3,
		DocumentIDs: []string{"doc-1", "doc-2"},
	}).Return([]*service.SearchResult{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/embeddings/search?q=vector+databases&limit=3&documentIds=doc-1,%20doc-2", nil)
	w := httptest.NewRecorder()

	handler.SearchGet(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSearch.AssertExpectations(t)
}

func TestEmbeddingHandler_LLMStatus_Success(t *testing.T) {
	mockSvc := new(MockEmbeddingService)
	handler := NewEmbeddingHandler(mockSvc, new(MockSearchService))

	mockSvc.On("ServiceHealth", mock.Anything).Return(&service.ProcessorHealth{
		Status:      "healthy",
		Model:       "sentence-transformers/all-distilroberta-v1",
		ModelLoaded: true,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/embeddings/llm-status", nil)
	w := httptest.NewRecorder()

	handler.LLMStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, true, data["modelLoaded"])
	mockSvc.AssertExpectations(t)
}

func TestEmbeddingHandler_LLMStatus_Unconfigured(t *testing.T) {
	mockSvc := new(MockEmbeddingService)
	handler := NewEmbeddingHandler(mockSvc, new(MockSearchService))

	mockSvc.On("ServiceHealth", mock.Anything).Return(nil, domain.ErrEmbedServiceUnconfigured)

	req := httptest.NewRequest(http.MethodGet, "/api/embeddings/llm-status", nil)
	w := httptest.NewRecorder()

	handler.LLMStatus(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	mockSvc.AssertExpectations(t)
}
