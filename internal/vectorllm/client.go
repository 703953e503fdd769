// Package vectorllm is the HTTP client for the vector-convert-llm
// embedding service.
package vectorllm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docstore-ai/docstore/internal/domain"
	"github.com/docstore-ai/docstore/internal/service"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds every outbound call to the embedding service.
	DefaultTimeout = 30 * time.Second
	// DefaultRateLimit is the default requests-per-second cap.
	DefaultRateLimit = 10
)

// ErrEmptyText is returned when text is empty
var ErrEmptyText = errors.New("text cannot be empty")

type Config struct {
	// BaseURL is the embedding service address.
	BaseURL string
	// CallbackBaseURL is this service's address, handed to the embedding
	// service so it can fetch documents and post vectors back.
	CallbackBaseURL string
	Timeout         time.Duration
	// RateLimit caps outbound requests per second. Zero uses the default.
	RateLimit int
}

// Client calls the vector-convert-llm service.
type Client struct {
	baseURL         string
	callbackBaseURL string
	httpClient      *http.Client
	limiter         *rate.Limiter
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	return &Client{
		baseURL:         cfg.BaseURL,
		callbackBaseURL: cfg.CallbackBaseURL,
		httpClient:      &http.Client{Timeout: timeout},
		limiter:         rate.NewLimiter(rate.Limit(limit), limit),
	}
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embeddings []float32 `json:"embeddings"`
	// Embedding is a legacy alias some service builds reply with.
	Embedding        []float32 `json:"embedding"`
	Model            string    `json:"model"`
	Dimensions       int       `json:"dimensions"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

func (r *embedResponse) vector() []float32 {
	if len(r.Embeddings) > 0 {
		return r.Embeddings
	}
	return r.Embedding
}

// GenerateEmbedding asks the embedding service for a vector.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) (*service.EmbeddingResult, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	var resp embedResponse
	if err := c.post(ctx, "/embed", embedRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	vec := resp.vector()
	if len(vec) == 0 {
		return nil, domain.NewUpstreamError("embedding service returned an empty vector", "")
	}

	return &service.EmbeddingResult{
		Vector:           vec,
		Model:            resp.Model,
		ProcessingTimeMs: resp.ProcessingTimeMs,
	}, nil
}

type processRequest struct {
	DocumentID  string `json:"document_id"`
	ConvexURL   string `json:"convex_url"`
	UseChunking bool   `json:"use_chunking"`
	ChunkSize   int    `json:"chunk_size,omitempty"`
}

// ProcessDocument hands a document to the embedding service for chunked
// processing. The service fetches the content from the callback URL and
// posts each chunk's vector back.
func (c *Client) ProcessDocument(ctx context.Context, documentID string, useChunking bool, chunkSize int) error {
	if c.callbackBaseURL == "" {
		return domain.ErrCallbackURLUnconfigured
	}

	req := processRequest{
		DocumentID:  documentID,
		ConvexURL:   c.callbackBaseURL,
		UseChunking: useChunking,
		ChunkSize:   chunkSize,
	}
	return c.post(ctx, "/process-document", req, nil)
}

type healthResponse struct {
	Status      string `json:"status"`
	Model       string `json:"model"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Health returns the embedding service's model status.
func (c *Client) Health(ctx context.Context) (*service.ProcessorHealth, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "embedding service unreachable", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, upstreamError(httpResp.StatusCode, body)
	}

	var resp healthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewUpstreamError("embedding service returned malformed health payload", string(body))
	}

	return &service.ProcessorHealth{
		Status:      resp.Status,
		Model:       resp.Model,
		ModelLoaded: resp.ModelLoaded,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "embedding service unreachable", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return upstreamError(httpResp.StatusCode, body)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return domain.NewUpstreamError("embedding service returned malformed payload", string(body))
		}
	}
	return nil
}

// upstreamError preserves the upstream status and body so callers can see
// what the service actually said.
func upstreamError(status int, body []byte) error {
	return domain.NewUpstreamError(
		fmt.Sprintf("embedding service returned status %d", status),
		string(body),
	)
}
