package domain

import (
	"fmt"
	"strings"
	"time"
)

// ContentType represents the content type of a document
type ContentType string

const (
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
)

// MaxContentBytes is the largest document content accepted for ingestion.
const MaxContentBytes = 1024 * 1024

// Document represents a document in the knowledge base
type Document struct {
	ID           string
	Title        string
	Content      string
	ContentType  ContentType
	FileSize     int64
	WordCount    int
	Tags         []string
	Summary      string
	UploadedAt   time.Time
	LastModified time.Time
	IsActive     bool
	HasEmbedding bool
}

// NewDocument creates a new Document with derived fields computed from content
func NewDocument(id, title, content string, contentType ContentType, tags []string, summary string, now time.Time) *Document {
	return &Document{
		ID:           id,
		Title:        title,
		Content:      content,
		ContentType:  contentType,
		FileSize:     ContentSize(content),
		WordCount:    CountWords(content),
		Tags:         tags,
		Summary:      summary,
		UploadedAt:   now,
		LastModified: now,
		IsActive:     true,
		HasEmbedding: false,
	}
}

// CountWords counts whitespace-delimited tokens in content
func CountWords(content string) int {
	return len(strings.Fields(content))
}

// ContentSize returns the byte length of content
func ContentSize(content string) int64 {
	return int64(len(content))
}

// RecomputeDerived recomputes word count and file size from the current content
func (d *Document) RecomputeDerived() {
	d.WordCount = CountWords(d.Content)
	d.FileSize = ContentSize(d.Content)
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Title == "" {
		return fmt.Errorf("document Title is required")
	}

	if d.Content == "" {
		return fmt.Errorf("document Content is required")
	}

	if !IsValidContentType(d.ContentType) {
		return fmt.Errorf("document ContentType is invalid: %s", d.ContentType)
	}

	if int64(len(d.Content)) > MaxContentBytes {
		return fmt.Errorf("document Content exceeds %d bytes", MaxContentBytes)
	}

	return nil
}

// IsValidContentType checks if a ContentType is valid
func IsValidContentType(t ContentType) bool {
	switch t {
	case ContentTypeMarkdown, ContentTypeText:
		return true
	}
	return false
}

// DocumentStats holds aggregate statistics over the active corpus
type DocumentStats struct {
	TotalDocuments          int
	TotalWords              int64
	TotalSize               int64
	ContentTypes            map[string]int
	AverageWordsPerDocument int
	AverageSizePerDocument  int
}

// EnhancedDocumentStats extends DocumentStats with embedding coverage and
// recent activity counters
type EnhancedDocumentStats struct {
	DocumentStats
	TotalEmbeddings               int
	TotalChunks                   int
	DocumentsWithEmbeddings       int
	DocumentsWithoutEmbeddings    int
	EmbeddingModels               map[string]int
	EmbeddingCoveragePercent      int
	AverageEmbeddingsPerDocument  int
	UploadsLast24h                int
	EmbeddingsLast24h             int
}
