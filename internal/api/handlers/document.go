package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/docstore-ai/docstore/internal/api"
	"github.com/docstore-ai/docstore/internal/domain"
	"github.com/docstore-ai/docstore/internal/service"
	"github.com/go-chi/chi/v5"
)

type DocumentService interface {
	Save(ctx context.Context, input service.SaveInput) (*domain.Document, error)
	SaveBatch(ctx context.Context, inputs []service.SaveInput) ([]*domain.Document, error)
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Update(ctx context.Context, id string, input service.UpdateInput) (*domain.Document, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, input service.ListInput) (*service.ListOutput, error)
	Stats(ctx context.Context) (*domain.DocumentStats, error)
	EnhancedStats(ctx context.Context) (*domain.EnhancedDocumentStats, error)
	ListJobs(ctx context.Context, documentID string) ([]*domain.EmbeddingJob, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type SaveDocumentRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	ContentType string   `json:"contentType"`
	Tags        []string `json:"tags"`
	Summary     string   `json:"summary"`
}

type BatchSaveRequest struct {
	Documents []SaveDocumentRequest `json:"documents"`
}

type UpdateDocumentRequest struct {
	Title       *string  `json:"title"`
	Content     *string  `json:"content"`
	ContentType *string  `json:"contentType"`
	Tags        []string `json:"tags"`
	Summary     *string  `json:"summary"`
}

type DocumentResponse struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	ContentType  string   `json:"contentType"`
	FileSize     int64    `json:"fileSize"`
	WordCount    int      `json:"wordCount"`
	Tags         []string `json:"tags"`
	Summary      string   `json:"summary,omitempty"`
	UploadedAt   string   `json:"uploadedAt"`
	LastModified string   `json:"lastModified"`
	HasEmbedding bool     `json:"hasEmbedding"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return &DocumentResponse{
		ID:           d.ID,
		Title:        d.Title,
		Content:      d.Content,
		ContentType:  string(d.ContentType),
		FileSize:     d.FileSize,
		WordCount:    d.WordCount,
		Tags:         tags,
		Summary:      d.Summary,
		UploadedAt:   d.UploadedAt.UTC().Format(time.RFC3339),
		LastModified: d.LastModified.UTC().Format(time.RFC3339),
		HasEmbedding: d.HasEmbedding,
	}
}

func saveInputFromRequest(req SaveDocumentRequest) service.SaveInput {
	return service.SaveInput{
		Title:       req.Title,
		Content:     req.Content,
		ContentType: req.ContentType,
		Tags:        req.Tags,
		Summary:     req.Summary,
	}
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SaveDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.svc.Save(r.Context(), saveInputFromRequest(req))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

type BatchSaveResponse struct {
	Documents []*DocumentResponse `json:"documents"`
	Count     int                 `json:"count"`
	Message   string              `json:"message"`
}

func (h *DocumentHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inputs := make([]service.SaveInput, len(req.Documents))
	for i, d := range req.Documents {
		inputs[i] = saveInputFromRequest(d)
	}

	docs, err := h.svc.SaveBatch(r.Context(), inputs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(docs))
	for i, d := range docs {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusCreated, BatchSaveResponse{
		Documents: responses,
		Count:     len(responses),
		Message:   fmt.Sprintf("Batch upload completed: %d successful, 0 failed", len(responses)),
	})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.UpdateInput{
		Title:       req.Title,
		Content:     req.Content,
		ContentType: req.ContentType,
		Tags:        req.Tags,
		Summary:     req.Summary,
	}

	doc, err := h.svc.Update(r.Context(), id, input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

type DeleteDocumentResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DeleteDocumentResponse{ID: id, Deleted: true})
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"hasMore"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.svc.List(r.Context(), service.ListInput{Cursor: cursor, Limit: limit})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(output.Items))
	for i, d := range output.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

type DocumentStatsResponse struct {
	TotalDocuments          int            `json:"totalDocuments"`
	TotalWords              int64          `json:"totalWords"`
	TotalSize               int64          `json:"totalSize"`
	ContentTypes            map[string]int `json:"contentTypes"`
	AverageWordsPerDocument int            `json:"averageWordsPerDocument"`
	AverageSizePerDocument  int            `json:"averageSizePerDocument"`
}

func statsToResponse(s *domain.DocumentStats) DocumentStatsResponse {
	contentTypes := s.ContentTypes
	if contentTypes == nil {
		contentTypes = map[string]int{}
	}
	return DocumentStatsResponse{
		TotalDocuments:          s.TotalDocuments,
		TotalWords:              s.TotalWords,
		TotalSize:               s.TotalSize,
		ContentTypes:            contentTypes,
		AverageWordsPerDocument: s.AverageWordsPerDocument,
		AverageSizePerDocument:  s.AverageSizePerDocument,
	}
}

func (h *DocumentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, statsToResponse(stats))
}

type EnhancedStatsResponse struct {
	DocumentStatsResponse
	TotalEmbeddings              int            `json:"totalEmbeddings"`
	TotalChunks                  int            `json:"totalChunks"`
	DocumentsWithEmbeddings      int            `json:"documentsWithEmbeddings"`
	DocumentsWithoutEmbeddings   int            `json:"documentsWithoutEmbeddings"`
	EmbeddingModels              map[string]int `json:"embeddingModels"`
	EmbeddingCoveragePercent     int            `json:"embeddingCoveragePercent"`
	AverageEmbeddingsPerDocument int            `json:"averageEmbeddingsPerDocument"`
	UploadsLast24h               int            `json:"uploadsLast24h"`
	EmbeddingsLast24h            int            `json:"embeddingsLast24h"`
}

func (h *DocumentHandler) EnhancedStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.EnhancedStats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	models := stats.EmbeddingModels
	if models == nil {
		models = map[string]int{}
	}

	api.Success(w, http.StatusOK, EnhancedStatsResponse{
		DocumentStatsResponse:        statsToResponse(&stats.DocumentStats),
		TotalEmbeddings:              stats.TotalEmbeddings,
		TotalChunks:                  stats.TotalChunks,
		DocumentsWithEmbeddings:      stats.DocumentsWithEmbeddings,
		DocumentsWithoutEmbeddings:   stats.DocumentsWithoutEmbeddings,
		EmbeddingModels:              models,
		EmbeddingCoveragePercent:     stats.EmbeddingCoveragePercent,
		AverageEmbeddingsPerDocument: stats.AverageEmbeddingsPerDocument,
		UploadsLast24h:               stats.UploadsLast24h,
		EmbeddingsLast24h:            stats.EmbeddingsLast24h,
	})
}

type EmbeddingJobResponse struct {
	ID          string `json:"id"`
	DocumentID  string `json:"documentId"`
	Status      string `json:"status"`
	Attempts    int32  `json:"attempts"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"createdAt"`
	ProcessedAt string `json:"processedAt,omitempty"`
}

func jobToResponse(j *domain.EmbeddingJob) *EmbeddingJobResponse {
	resp := &EmbeddingJobResponse{
		ID:         j.ID,
		DocumentID: j.DocumentID,
		Status:     string(j.Status),
		Attempts:   j.Attempts,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.ProcessedAt != nil {
		resp.ProcessedAt = j.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

type JobListResponse struct {
	Jobs  []*EmbeddingJobResponse `json:"jobs"`
	Count int                     `json:"count"`
}

func (h *DocumentHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	jobs, err := h.svc.ListJobs(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*EmbeddingJobResponse, len(jobs))
	for i, j := range jobs {
		responses[i] = jobToResponse(j)
	}

	api.Success(w, http.StatusOK, JobListResponse{Jobs: responses, Count: len(responses)})
}
