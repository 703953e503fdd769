//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docstore-ai/docstore/internal/api/handlers"
	"github.com/docstore-ai/docstore/internal/jobs"
	"github.com/docstore-ai/docstore/internal/repository"
	"github.com/docstore-ai/docstore/internal/server"
	"github.com/docstore-ai/docstore/internal/service"
	"github.com/docstore-ai/docstore/internal/testutil"
	"github.com/docstore-ai/docstore/internal/vectorllm"
	"github.com/jackc/pgx/v5/pgxpool"
)

const embedDimensions = 384

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	EmbedServer  *httptest.Server
	Worker       *jobs.Worker
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client
}

// SetupE2EEnv starts postgres, a fake embedding service, the job worker,
// and an in-process API server.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	embedServer := newFakeEmbedServer()

	serverURL, serverCloser, worker := startServer(t, ctx, pool, embedServer.URL)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		EmbedServer:  embedServer,
		Worker:       worker,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Worker != nil {
		e.Worker.Stop()
	}
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.EmbedServer != nil {
		e.EmbedServer.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// newFakeEmbedServer returns an embedding service stub. Vectors are
// bag-of-words so texts sharing words land close in cosine space, which
// makes search results deterministic.
func newFakeEmbedServer() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings":         textVector(req.Text),
			"model":              "fake-embedder",
			"dimensions":         embedDimensions,
			"processing_time_ms": 1,
		})
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       "healthy",
			"model":        "fake-embedder",
			"model_loaded": true,
		})
	})

	return httptest.NewServer(mux)
}

func textVector(text string) []float32 {
	v := make([]float32, embedDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%embedDimensions]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

// startServer wires real repositories and services against the fake
// embedding service and starts the HTTP server plus the job worker.
func startServer(t *testing.T, ctx context.Context, pool *pgxpool.Pool, embedURL string) (string, func(), *jobs.Worker) {
	docRepo := repository.NewDocumentRepository(pool)
	embRepo := repository.NewEmbeddingRepository(pool)
	jobRepo := repository.NewEmbeddingJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	embedClient := vectorllm.NewClient(vectorllm.Config{
		BaseURL: embedURL,
		Timeout: 10 * time.Second,
	})

	documentSvc := service.NewDocumentService(docRepo, embRepo, jobRepo, txRunner)
	embeddingSvc := service.NewEmbeddingService(embedClient, docRepo, embRepo, txRunner, "fake-embedder").
		WithProcessor(embedClient)
	searchSvc := service.NewSearchService(embedClient, embRepo, docRepo)

	worker := jobs.NewWorker(jobs.NewEmbeddingWorker(jobRepo, embeddingSvc), 200*time.Millisecond)
	go worker.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler:  handlers.NewDocumentHandler(documentSvc),
		EmbeddingHandler: handlers.NewEmbeddingHandler(embeddingSvc, searchSvc),
	})

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL)

	closer := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}

	return serverURL, closer, worker
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func waitForServer(t *testing.T, url string) {
	client := &http.Client{Timeout: time.Second}
	for i := 0; i < 50; i++ {
		resp, err := client.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("server did not become ready")
}

// WaitForEmbedding polls a document until the worker has embedded it.
func (e *E2ETestEnv) WaitForEmbedding(documentID string) {
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := e.Get("/api/documents/" + documentID)
		if err == nil {
			var doc struct {
				HasEmbedding bool `json:"hasEmbedding"`
			}
			if json.Unmarshal(resp.Data, &doc) == nil && doc.HasEmbedding {
				return
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	e.T.Fatalf("document %s was not embedded in time", documentID)
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("PUT", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}
