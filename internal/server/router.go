package server

import (
	"net/http"

	"github.com/docstore-ai/docstore/internal/api"
	"github.com/docstore-ai/docstore/internal/api/handlers"
	"github.com/docstore-ai/docstore/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	DocumentHandler  *handlers.DocumentHandler
	EmbeddingHandler *handlers.EmbeddingHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Content is capped at 1 MiB; leave headroom for JSON framing and
	// batch payloads.
	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/documents", func(r chi.Router) {
		r.Post("/", cfg.DocumentHandler.Create)
		r.Get("/", cfg.DocumentHandler.List)
		r.Post("/batch", cfg.DocumentHandler.CreateBatch)
		r.Get("/stats", cfg.DocumentHandler.Stats)
		r.Get("/stats/enhanced", cfg.DocumentHandler.EnhancedStats)
		r.Get("/{id}", cfg.DocumentHandler.Get)
		r.Put("/{id}", cfg.DocumentHandler.Update)
		r.Delete("/{id}", cfg.DocumentHandler.Delete)
		r.Get("/{id}/jobs", cfg.DocumentHandler.Jobs)
	})

	r.Route("/api/embeddings", func(r chi.Router) {
		r.Post("/", cfg.EmbeddingHandler.Create)
		r.Get("/", cfg.EmbeddingHandler.ListByDocument)
		r.Post("/generate", cfg.EmbeddingHandler.Generate)
		r.Post("/process", cfg.EmbeddingHandler.Process)
		r.Post("/search", cfg.EmbeddingHandler.Search)
		r.Get("/search", cfg.EmbeddingHandler.SearchGet)
		r.Get("/llm-status", cfg.EmbeddingHandler.LLMStatus)
	})

	return r
}
