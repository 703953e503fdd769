//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type documentPayload struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	ContentType  string   `json:"contentType"`
	FileSize     int64    `json:"fileSize"`
	WordCount    int      `json:"wordCount"`
	Tags         []string `json:"tags"`
	HasEmbedding bool     `json:"hasEmbedding"`
}

func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	var doc documentPayload

	t.Run("create document", func(t *testing.T) {
		resp, err := env.Post("/api/documents", map[string]interface{}{
			"title":       "Deployment Runbook",
			"content":     "drain connections then restart the ingest worker",
			"contentType": "text",
			"tags":        []string{"ops", "runbook"},
		})
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(resp.Data, &doc))

		assert.NotEmpty(t, doc.ID)
		assert.Equal(t, 7, doc.WordCount)
		assert.False(t, doc.HasEmbedding)
	})

	t.Run("worker embeds document", func(t *testing.T) {
		env.WaitForEmbedding(doc.ID)

		resp, err := env.Get("/api/embeddings?documentId=" + doc.ID)
		require.NoError(t, err)

		var list struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		assert.Equal(t, 1, list.Count)
	})

	t.Run("search finds the document", func(t *testing.T) {
		resp, err := env.Post("/api/embeddings/search", map[string]interface{}{
			"queryText": "restart the ingest worker",
		})
		require.NoError(t, err)

		var search struct {
			Results []struct {
				Document documentPayload `json:"document"`
				Score    float64         `json:"score"`
			} `json:"results"`
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &search))
		require.NotZero(t, search.Count)
		assert.Equal(t, doc.ID, search.Results[0].Document.ID)
		assert.Greater(t, search.Results[0].Score, 0.5)
	})

	t.Run("content update invalidates and re-embeds", func(t *testing.T) {
		resp, err := env.Put("/api/documents/"+doc.ID, map[string]interface{}{
			"content": "completely different text about database vacuuming",
		})
		require.NoError(t, err)

		var updated documentPayload
		require.NoError(t, json.Unmarshal(resp.Data, &updated))
		assert.False(t, updated.HasEmbedding)
		assert.Equal(t, 6, updated.WordCount)

		env.WaitForEmbedding(doc.ID)

		// Retired vectors stay invisible: only the fresh one is listed
		listResp, err := env.Get("/api/embeddings?documentId=" + doc.ID)
		require.NoError(t, err)
		var list struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(listResp.Data, &list))
		assert.Equal(t, 1, list.Count)
	})

	t.Run("metadata update keeps embedding", func(t *testing.T) {
		resp, err := env.Put("/api/documents/"+doc.ID, map[string]interface{}{
			"title": "Vacuuming Runbook",
			"tags":  []string{"ops", "postgres"},
		})
		require.NoError(t, err)

		var updated documentPayload
		require.NoError(t, json.Unmarshal(resp.Data, &updated))
		assert.True(t, updated.HasEmbedding)
		assert.Equal(t, "Vacuuming Runbook", updated.Title)
	})

	t.Run("job history records runs", func(t *testing.T) {
		resp, err := env.Get("/api/documents/" + doc.ID + "/jobs")
		require.NoError(t, err)

		var jobs struct {
			Count int `json:"count"`
			Jobs  []struct {
				Status   string `json:"status"`
				Attempts int    `json:"attempts"`
			} `json:"jobs"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &jobs))
		require.Equal(t, 2, jobs.Count)
		for _, job := range jobs.Jobs {
			assert.Equal(t, "succeeded", job.Status)
			assert.Equal(t, 1, job.Attempts)
		}
	})

	t.Run("delete hides document from reads and search", func(t *testing.T) {
		_, err := env.Delete("/api/documents/" + doc.ID)
		require.NoError(t, err)

		_, err = env.Get("/api/documents/" + doc.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")

		resp, err := env.Post("/api/embeddings/search", map[string]interface{}{
			"queryText": "database vacuuming",
		})
		require.NoError(t, err)

		var search struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &search))
		assert.Zero(t, search.Count)
	})
}

func TestE2E_BatchAndStats(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("batch save is atomic", func(t *testing.T) {
		_, err := env.Post("/api/documents/batch", map[string]interface{}{
			"documents": []map[string]interface{}{
				{"title": "Valid", "content": "fine", "contentType": "text"},
				{"title": "Broken", "content": "nope", "contentType": "pdf"},
			},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Document 2")

		resp, err := env.Get("/api/documents")
		require.NoError(t, err)
		var list struct {
			Items []documentPayload `json:"items"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		assert.Empty(t, list.Items)
	})

	var ids []string
	t.Run("batch save succeeds", func(t *testing.T) {
		docs := make([]map[string]interface{}, 3)
		for i := range docs {
			docs[i] = map[string]interface{}{
				"title":       fmt.Sprintf("Note %d", i+1),
				"content":     fmt.Sprintf("note body number %d", i+1),
				"contentType": "markdown",
			}
		}

		resp, err := env.Post("/api/documents/batch", map[string]interface{}{"documents": docs})
		require.NoError(t, err)

		var batch struct {
			Documents []documentPayload `json:"documents"`
			Count     int               `json:"count"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &batch))
		require.Equal(t, 3, batch.Count)
		for _, d := range batch.Documents {
			ids = append(ids, d.ID)
		}
	})

	t.Run("cursor pagination walks all documents", func(t *testing.T) {
		seen := map[string]bool{}
		cursor := ""
		for i := 0; i < 5; i++ {
			path := "/api/documents?limit=2"
			if cursor != "" {
				path += "&cursor=" + cursor
			}
			resp, err := env.Get(path)
			require.NoError(t, err)

			var page struct {
				Items   []documentPayload `json:"items"`
				Cursor  string            `json:"cursor"`
				HasMore bool              `json:"hasMore"`
			}
			require.NoError(t, json.Unmarshal(resp.Data, &page))
			for _, item := range page.Items {
				assert.False(t, seen[item.ID], "duplicate item in pagination")
				seen[item.ID] = true
			}
			if !page.HasMore {
				break
			}
			cursor = page.Cursor
		}
		assert.Len(t, seen, 3)
	})

	t.Run("stats reflect the corpus", func(t *testing.T) {
		for _, id := range ids {
			env.WaitForEmbedding(id)
		}

		resp, err := env.Get("/api/documents/stats/enhanced")
		require.NoError(t, err)

		var stats struct {
			TotalDocuments           int            `json:"totalDocuments"`
			TotalEmbeddings          int            `json:"totalEmbeddings"`
			DocumentsWithEmbeddings  int            `json:"documentsWithEmbeddings"`
			EmbeddingCoveragePercent int            `json:"embeddingCoveragePercent"`
			ContentTypes             map[string]int `json:"contentTypes"`
			EmbeddingModels          map[string]int `json:"embeddingModels"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &stats))
		assert.Equal(t, 3, stats.TotalDocuments)
		assert.Equal(t, 3, stats.TotalEmbeddings)
		assert.Equal(t, 3, stats.DocumentsWithEmbeddings)
		assert.Equal(t, 100, stats.EmbeddingCoveragePercent)
		assert.Equal(t, 3, stats.ContentTypes["markdown"])
		assert.Equal(t, 3, stats.EmbeddingModels["fake-embedder"])
	})

	t.Run("llm status reports fake embedder", func(t *testing.T) {
		resp, err := env.Get("/api/embeddings/llm-status")
		require.NoError(t, err)

		var status struct {
			Status      string `json:"status"`
			Model       string `json:"model"`
			ModelLoaded bool   `json:"modelLoaded"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &status))
		assert.Equal(t, "healthy", status.Status)
		assert.True(t, status.ModelLoaded)
	})
}

func TestE2E_Validation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("missing fields", func(t *testing.T) {
		_, err := env.Post("/api/documents", map[string]interface{}{
			"content": "no title or type",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Missing required fields: title, content, contentType")
	})

	t.Run("bad content type", func(t *testing.T) {
		_, err := env.Post("/api/documents", map[string]interface{}{
			"title":       "Doc",
			"content":     "body",
			"contentType": "pdf",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contentType must be 'markdown' or 'text'")
	})

	t.Run("oversized content", func(t *testing.T) {
		_, err := env.Post("/api/documents", map[string]interface{}{
			"title":       "Huge",
			"content":     strings.Repeat("x", 1024*1024+1),
			"contentType": "text",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Content too large. Maximum size is 1MB")
	})

	t.Run("missing query text", func(t *testing.T) {
		_, err := env.Post("/api/embeddings/search", map[string]interface{}{
			"queryText": "   ",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Missing queryText")
	})
}
