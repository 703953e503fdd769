package repository

import (
	"context"
	"errors"
	"time"

	"github.com/docstore-ai/docstore/internal/domain"
	"github.com/docstore-ai/docstore/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type EmbeddingRepository struct {
	db dbtx
}

func NewEmbeddingRepository(pool *pgxpool.Pool) *EmbeddingRepository {
	return &EmbeddingRepository{db: pool}
}

func NewEmbeddingRepositoryWithTx(tx pgx.Tx) *EmbeddingRepository {
	return &EmbeddingRepository{db: tx}
}

func (r *EmbeddingRepository) Create(ctx context.Context, e *domain.Embedding) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO document_embeddings (id, document_id, embedding, embedding_model, embedding_dimensions, chunk_text, chunk_index, processing_time_ms, created_at, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.DocumentID, pgvector.NewVector(e.Embedding), e.EmbeddingModel, e.EmbeddingDimensions,
		nullableString(e.ChunkText), e.ChunkIndex, e.ProcessingTimeMs, e.CreatedAt, e.IsActive,
	)
	return err
}

func (r *EmbeddingRepository) GetByID(ctx context.Context, id string) (*domain.Embedding, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, document_id, embedding, embedding_model, embedding_dimensions, chunk_text, chunk_index, processing_time_ms, created_at, is_active
		 FROM document_embeddings WHERE id = $1`,
		id,
	)
	e, err := scanEmbedding(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEmbeddingNotFound
		}
		return nil, err
	}
	return e, nil
}

// HasActiveEmbedding reports whether a document already has at least one
// active embedding. Used to make duplicate job executions no-ops.
func (r *EmbeddingRepository) HasActiveEmbedding(ctx context.Context, documentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM document_embeddings WHERE document_id = $1 AND is_active = TRUE)`,
		documentID,
	).Scan(&exists)
	return exists, err
}

func (r *EmbeddingRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Embedding, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, embedding, embedding_model, embedding_dimensions, chunk_text, chunk_index, processing_time_ms, created_at, is_active
		 FROM document_embeddings
		 WHERE document_id = $1 AND is_active = TRUE
		 ORDER BY chunk_index ASC NULLS FIRST, created_at ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.Embedding
	for rows.Next() {
		e, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// DeactivateByDocument retires every active embedding for a document.
// Called when document content changes so stale vectors stop matching.
func (r *EmbeddingRepository) DeactivateByDocument(ctx context.Context, documentID string) (int64, error) {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE document_embeddings SET is_active = FALSE WHERE document_id = $1 AND is_active = TRUE`,
		documentID,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

// SearchByVector runs cosine ANN over active embeddings. Score is cosine
// similarity, so higher is closer. When documentIDs is non-empty the scan
// is restricted to those documents.
func (r *EmbeddingRepository) SearchByVector(ctx context.Context, embedding []float32, limit int, documentIDs []string) ([]*service.VectorHit, error) {
	if limit <= 0 {
		limit = 10
	}

	vec := pgvector.NewVector(embedding)

	query := `
		SELECT id, document_id, embedding_model, chunk_text, chunk_index,
		       1 - (embedding <=> $1) AS score
		FROM document_embeddings
		WHERE is_active = TRUE`
	args := []interface{}{vec}

	if len(documentIDs) > 0 {
		query += ` AND document_id = ANY($2)`
		args = append(args, documentIDs)
		query += `
		ORDER BY embedding <=> $1
		LIMIT $3`
	} else {
		query += `
		ORDER BY embedding <=> $1
		LIMIT $2`
	}
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*service.VectorHit, 0)
	for rows.Next() {
		var hit service.VectorHit
		var chunkText *string
		if err := rows.Scan(&hit.EmbeddingID, &hit.DocumentID, &hit.EmbeddingModel, &chunkText, &hit.ChunkIndex, &hit.Score); err != nil {
			return nil, err
		}
		if chunkText != nil {
			hit.ChunkText = *chunkText
		}
		results = append(results, &hit)
	}
	return results, rows.Err()
}

// Aggregate collects the embedding-side counters for enhanced stats.
func (r *EmbeddingRepository) Aggregate(ctx context.Context, since time.Time) (*service.EmbeddingAggregate, error) {
	agg := &service.EmbeddingAggregate{Models: make(map[string]int)}

	// Embeddings of soft-deleted documents stay in the table; exclude
	// them so coverage never exceeds 100%.
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE chunk_index IS NOT NULL),
		        COUNT(DISTINCT document_id),
		        COUNT(*) FILTER (WHERE created_at >= $1)
		 FROM document_embeddings e
		 WHERE e.is_active = TRUE
		   AND EXISTS (SELECT 1 FROM documents d WHERE d.id = e.document_id AND d.is_active = TRUE)`,
		since,
	).Scan(&agg.TotalEmbeddings, &agg.TotalChunks, &agg.DocumentsWithEmbeddings, &agg.CreatedSince)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT embedding_model, COUNT(*)
		 FROM document_embeddings e
		 WHERE e.is_active = TRUE
		   AND EXISTS (SELECT 1 FROM documents d WHERE d.id = e.document_id AND d.is_active = TRUE)
		 GROUP BY embedding_model`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var model string
		var count int
		if err := rows.Scan(&model, &count); err != nil {
			return nil, err
		}
		agg.Models[model] = count
	}
	return agg, rows.Err()
}

func scanEmbedding(row pgx.Row) (*domain.Embedding, error) {
	var e domain.Embedding
	var vec pgvector.Vector
	var chunkText *string
	if err := row.Scan(&e.ID, &e.DocumentID, &vec, &e.EmbeddingModel, &e.EmbeddingDimensions, &chunkText, &e.ChunkIndex, &e.ProcessingTimeMs, &e.CreatedAt, &e.IsActive); err != nil {
		return nil, err
	}
	e.Embedding = vec.Slice()
	if chunkText != nil {
		e.ChunkText = *chunkText
	}
	return &e, nil
}
