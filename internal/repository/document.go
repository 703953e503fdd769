package repository

import (
	"context"
	"errors"
	"time"

	"github.com/docstore-ai/docstore/internal/domain"
	"github.com/docstore-ai/docstore/internal/pagination"
	"github.com/docstore-ai/docstore/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	if err := domain.ValidateDocument(d); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, title, content, content_type, file_size, word_count, tags, summary, uploaded_at, last_modified, is_active, has_embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.Title, d.Content, d.ContentType, d.FileSize, d.WordCount, d.Tags, nullableString(d.Summary), d.UploadedAt, d.LastModified, d.IsActive, d.HasEmbedding,
	)
	return err
}

// GetByID returns an active document. Soft-deleted documents are treated
// as missing.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	var summary *string
	err := r.db.QueryRow(ctx,
		`SELECT id, title, content, content_type, file_size, word_count, tags, summary, uploaded_at, last_modified, is_active, has_embedding
		 FROM documents WHERE id = $1 AND is_active = TRUE`,
		id,
	).Scan(&d.ID, &d.Title, &d.Content, &d.ContentType, &d.FileSize, &d.WordCount, &d.Tags, &summary, &d.UploadedAt, &d.LastModified, &d.IsActive, &d.HasEmbedding)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if summary != nil {
		d.Summary = *summary
	}
	return &d, nil
}

func (r *DocumentRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, title, content, content_type, file_size, word_count, tags, summary, uploaded_at, last_modified, is_active, has_embedding
			 FROM documents
			 WHERE is_active = TRUE AND (uploaded_at, id) < ($1, $2)
			 ORDER BY uploaded_at DESC, id DESC
			 LIMIT $3`,
			cursor.UploadedAt, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, title, content, content_type, file_size, word_count, tags, summary, uploaded_at, last_modified, is_active, has_embedding
			 FROM documents
			 WHERE is_active = TRUE
			 ORDER BY uploaded_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.UploadedAt)
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *DocumentRepository) Update(ctx context.Context, d *domain.Document) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET title = $1, content = $2, content_type = $3, file_size = $4, word_count = $5, tags = $6, summary = $7, last_modified = $8, has_embedding = $9
		 WHERE id = $10 AND is_active = TRUE`,
		d.Title, d.Content, d.ContentType, d.FileSize, d.WordCount, d.Tags, nullableString(d.Summary), d.LastModified, d.HasEmbedding, d.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// MarkHasEmbedding flips the has_embedding flag and bumps last_modified.
// It is a no-op for documents that already carry the flag.
func (r *DocumentRepository) MarkHasEmbedding(ctx context.Context, id string, now time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET has_embedding = TRUE, last_modified = $1 WHERE id = $2 AND is_active = TRUE`,
		now, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// SoftDelete deactivates a document. The row and its embeddings are kept.
func (r *DocumentRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET is_active = FALSE, last_modified = $1 WHERE id = $2 AND is_active = TRUE`,
		now, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Stats(ctx context.Context) (*domain.DocumentStats, error) {
	stats := &domain.DocumentStats{ContentTypes: make(map[string]int)}

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(word_count), 0), COALESCE(SUM(file_size), 0)
		 FROM documents WHERE is_active = TRUE`,
	).Scan(&stats.TotalDocuments, &stats.TotalWords, &stats.TotalSize)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT content_type, COUNT(*) FROM documents WHERE is_active = TRUE GROUP BY content_type`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var contentType string
		var count int
		if err := rows.Scan(&contentType, &count); err != nil {
			return nil, err
		}
		stats.ContentTypes[contentType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.TotalDocuments > 0 {
		stats.AverageWordsPerDocument = int(stats.TotalWords) / stats.TotalDocuments
		stats.AverageSizePerDocument = int(stats.TotalSize) / stats.TotalDocuments
	}
	return stats, nil
}

func (r *DocumentRepository) CountUploadedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE is_active = TRUE AND uploaded_at >= $1`,
		since,
	).Scan(&count)
	return count, err
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		var d domain.Document
		var summary *string
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.ContentType, &d.FileSize, &d.WordCount, &d.Tags, &summary, &d.UploadedAt, &d.LastModified, &d.IsActive, &d.HasEmbedding); err != nil {
			return nil, err
		}
		if summary != nil {
			d.Summary = *summary
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}
