package service

import (
	"context"
	"errors"
	"strings"

	"github.com/docstore-ai/docstore/internal/domain"
	"github.com/docstore-ai/docstore/internal/telemetry"
)

// SearchInput represents a semantic search request.
type SearchInput struct {
	Query       string
	Limit       int
	DocumentIDs []string
}

// SearchResult is an enriched vector match: the matched chunk plus its
// parent document.
type SearchResult struct {
	Document    *domain.Document
	Score       float64
	EmbeddingID string
	ChunkText   string
	ChunkIndex  *int
}

// SearchService performs embedding-based document retrieval
type SearchService struct {
	client  EmbeddingClient
	embRepo EmbeddingRepositoryInterface
	docRepo DocumentRepositoryInterface
}

// NewSearchService creates a new SearchService instance
func NewSearchService(
	client EmbeddingClient,
	embRepo EmbeddingRepositoryInterface,
	docRepo DocumentRepositoryInterface,
) *SearchService {
	return &SearchService{
		client:  client,
		embRepo: embRepo,
		docRepo: docRepo,
	}
}

// Search embeds the query, runs ANN over active embeddings, and enriches
// each hit with its document. Hits whose document is missing or inactive
// are dropped, so results can come back shorter than the limit.
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]*SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.ErrMissingQueryText
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	result, err := s.client.GenerateEmbedding(ctx, input.Query)
	if err != nil {
		return nil, err
	}

	hits, err := s.embRepo.SearchByVector(ctx, result.Vector, limit, input.DocumentIDs)
	if err != nil {
		return nil, err
	}

	scope := make(map[string]bool, len(input.DocumentIDs))
	for _, id := range input.DocumentIDs {
		scope[id] = true
	}

	results := make([]*SearchResult, 0, len(hits))
	for _, hit := range hits {
		// The SQL filter already scopes document IDs; re-check here so a
		// stale index row can never leak an out-of-scope document.
		if len(scope) > 0 && !scope[hit.DocumentID] {
			continue
		}

		doc, err := s.docRepo.GetByID(ctx, hit.DocumentID)
		if err != nil {
			if errors.Is(err, domain.ErrDocumentNotFound) {
				continue
			}
			return nil, err
		}

		results = append(results, &SearchResult{
			Document:    doc,
			Score:       hit.Score,
			EmbeddingID: hit.EmbeddingID,
			ChunkText:   hit.ChunkText,
			ChunkIndex:  hit.ChunkIndex,
		})
	}

	return results, nil
}
