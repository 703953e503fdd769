package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docstore-ai/docstore/internal/api"
	"github.com/docstore-ai/docstore/internal/domain"
	"github.com/docstore-ai/docstore/internal/service"
)

type EmbeddingService interface {
	GenerateEmbedding(ctx context.Context, documentID string) error
	CreateEmbedding(ctx context.Context, input service.CreateEmbeddingInput) (*domain.Embedding, error)
	ProcessWithChunking(ctx context.Context, documentID string, chunkSize int) error
	ListByDocument(ctx context.Context, documentID string) ([]*domain.Embedding, error)
	ServiceHealth(ctx context.Context) (*service.ProcessorHealth, error)
}

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error)
}

type EmbeddingHandler struct {
	svc    EmbeddingService
	search SearchService
}

func NewEmbeddingHandler(svc EmbeddingService, search SearchService) *EmbeddingHandler {
	return &EmbeddingHandler{svc: svc, search: search}
}

type GenerateEmbeddingRequest struct {
	DocumentID string `json:"documentId"`
}

type GenerateEmbeddingResponse struct {
	DocumentID string `json:"documentId"`
	Status     string `json:"status"`
}

func (h *EmbeddingHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateEmbeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DocumentID == "" {
		api.Error(w, http.StatusBadRequest, "documentId is required")
		return
	}

	if err := h.svc.GenerateEmbedding(r.Context(), req.DocumentID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, GenerateEmbeddingResponse{
		DocumentID: req.DocumentID,
		Status:     "generated",
	})
}

type ProcessDocumentRequest struct {
	DocumentID string `json:"documentId"`
	ChunkSize  int    `json:"chunkSize"`
}

func (h *EmbeddingHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req ProcessDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.ProcessWithChunking(r.Context(), req.DocumentID, req.ChunkSize); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, GenerateEmbeddingResponse{
		DocumentID: req.DocumentID,
		Status:     "processing",
	})
}

type CreateEmbeddingRequest struct {
	DocumentID          string    `json:"documentId"`
	Embedding           []float32 `json:"embedding"`
	EmbeddingModel      string    `json:"embeddingModel"`
	EmbeddingDimensions int       `json:"embeddingDimensions"`
	// Short forms accepted as aliases.
	Model            string `json:"model"`
	Dimensions       int    `json:"dimensions"`
	ChunkText        string `json:"chunkText"`
	ChunkIndex       *int   `json:"chunkIndex"`
	ProcessingTimeMs *int64 `json:"processingTimeMs"`
}

func (r *CreateEmbeddingRequest) model() string {
	if r.EmbeddingModel != "" {
		return r.EmbeddingModel
	}
	return r.Model
}

func (r *CreateEmbeddingRequest) dimensions() int {
	if r.EmbeddingDimensions != 0 {
		return r.EmbeddingDimensions
	}
	return r.Dimensions
}

type EmbeddingResponse struct {
	ID               string `json:"id"`
	DocumentID       string `json:"documentId"`
	Model            string `json:"model"`
	Dimensions       int    `json:"dimensions"`
	ChunkText        string `json:"chunkText,omitempty"`
	ChunkIndex       *int   `json:"chunkIndex,omitempty"`
	ProcessingTimeMs *int64 `json:"processingTimeMs,omitempty"`
	CreatedAt        string `json:"createdAt"`
}

func embeddingToResponse(e *domain.Embedding) *EmbeddingResponse {
	return &EmbeddingResponse{
		ID:               e.ID,
		DocumentID:       e.DocumentID,
		Model:            e.EmbeddingModel,
		Dimensions:       e.EmbeddingDimensions,
		ChunkText:        e.ChunkText,
		ChunkIndex:       e.ChunkIndex,
		ProcessingTimeMs: e.ProcessingTimeMs,
		CreatedAt:        e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Create stores an externally generated vector. The embedding service calls
// this back for each chunk after /process-document.
func (h *EmbeddingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEmbeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	embedding, err := h.svc.CreateEmbedding(r.Context(), service.CreateEmbeddingInput{
		DocumentID:       req.DocumentID,
		Vector:           req.Embedding,
		Model:            req.model(),
		Dimensions:       req.dimensions(),
		ChunkText:        req.ChunkText,
		ChunkIndex:       req.ChunkIndex,
		ProcessingTimeMs: req.ProcessingTimeMs,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, embeddingToResponse(embedding))
}

type EmbeddingListResponse struct {
	Embeddings []*EmbeddingResponse `json:"embeddings"`
	Count      int                  `json:"count"`
}

func (h *EmbeddingHandler) ListByDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.URL.Query().Get("documentId")

	embeddings, err := h.svc.ListByDocument(r.Context(), documentID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*EmbeddingResponse, len(embeddings))
	for i, e := range embeddings {
		responses[i] = embeddingToResponse(e)
	}

	api.Success(w, http.StatusOK, EmbeddingListResponse{
		Embeddings: responses,
		Count:      len(responses),
	})
}

type SearchRequest struct {
	QueryText   string   `json:"queryText"`
	Query       string   `json:"query"`
	Q           string   `json:"q"`
	Limit       int      `json:"limit"`
	DocumentIDs []string `json:"documentIds"`
}

func (r SearchRequest) query() string {
	if r.QueryText != "" {
		return r.QueryText
	}
	if r.Query != "" {
		return r.Query
	}
	return r.Q
}

type SearchResultResponse struct {
	Document    *DocumentResponse `json:"document"`
	Score       float64           `json:"score"`
	EmbeddingID string            `json:"embeddingId"`
	ChunkText   string            `json:"chunkText,omitempty"`
	ChunkIndex  *int              `json:"chunkIndex,omitempty"`
}

type SearchResponse struct {
	Results []*SearchResultResponse `json:"results"`
	Count   int                     `json:"count"`
}

func (h *EmbeddingHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.runSearch(w, r, service.SearchInput{
		Query:       req.query(),
		Limit:       req.Limit,
		DocumentIDs: req.DocumentIDs,
	})
}

func (h *EmbeddingHandler) SearchGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("queryText")
	if query == "" {
		query = q.Get("query")
	}
	if query == "" {
		query = q.Get("q")
	}

	limit := 0
	if limitStr := q.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var documentIDs []string
	if raw := q.Get("documentIds"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				documentIDs = append(documentIDs, id)
			}
		}
	}

	h.runSearch(w, r, service.SearchInput{
		Query:       query,
		Limit:       limit,
		DocumentIDs: documentIDs,
	})
}

func (h *EmbeddingHandler) runSearch(w http.ResponseWriter, r *http.Request, input service.SearchInput) {
	results, err := h.search.Search(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SearchResultResponse, len(results))
	for i, res := range results {
		responses[i] = &SearchResultResponse{
			Document:    documentToResponse(res.Document),
			Score:       res.Score,
			EmbeddingID: res.EmbeddingID,
			ChunkText:   res.ChunkText,
			ChunkIndex:  res.ChunkIndex,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Results: responses,
		Count:   len(responses),
	})
}

type LLMStatusResponse struct {
	Status      string `json:"status"`
	Model       string `json:"model"`
	ModelLoaded bool   `json:"modelLoaded"`
}

func (h *EmbeddingHandler) LLMStatus(w http.ResponseWriter, r *http.Request) {
	health, err := h.svc.ServiceHealth(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, LLMStatusResponse{
		Status:      health.Status,
		Model:       health.Model,
		ModelLoaded: health.ModelLoaded,
	})
}
