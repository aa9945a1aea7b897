package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young1lin/flux/internal/config"
	"github.com/young1lin/flux/internal/models"
)

func newCohereTestServer(t *testing.T, handler http.HandlerFunc) *CohereReranker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCohereReranker(&config.RerankConfig{BaseURL: srv.URL, APIKey: "co-test"}, nil)
}

func TestCohereRerank(t *testing.T) {
	t.Run("Maps results in provider order", func(t *testing.T) {
		var got cohereRerankRequest
		r := newCohereTestServer(t, func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "/v2/rerank", req.URL.Path)
			assert.Equal(t, "Bearer co-test", req.Header.Get("Authorization"))
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"results": [
				{"index": 2, "relevance_score": 0.91},
				{"index": 0, "relevance_score": 0.40}
			]}`))
		})

		entries, err := r.Rerank(context.Background(), "what is svb", []string{"a", "b", "c"}, 0)
		require.NoError(t, err)

		assert.Equal(t, "rerank-v3.5", got.Model)
		assert.Equal(t, "what is svb", got.Query)
		assert.Equal(t, 3, got.TopN, "topN <= 0 means every document")
		assert.Equal(t, []models.RerankEntry{
			{OriginalIndex: 2, RelevanceScore: 0.91},
			{OriginalIndex: 0, RelevanceScore: 0.40},
		}, entries)
	})

	t.Run("Clamps topN to document count", func(t *testing.T) {
		var got cohereRerankRequest
		r := newCohereTestServer(t, func(w http.ResponseWriter, req *http.Request) {
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"results": []}`))
		})

		_, err := r.Rerank(context.Background(), "q", []string{"a", "b"}, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, got.TopN)
	})

	t.Run("Empty documents make no call", func(t *testing.T) {
		var calls int32
		r := newCohereTestServer(t, func(w http.ResponseWriter, req *http.Request) {
			atomic.AddInt32(&calls, 1)
		})

		entries, err := r.Rerank(context.Background(), "q", nil, 5)
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.NotNil(t, entries)
		assert.Zero(t, atomic.LoadInt32(&calls))
	})

	t.Run("Non-2xx is a provider error", func(t *testing.T) {
		r := newCohereTestServer(t, func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message": "rate limited"}`))
		})

		_, err := r.Rerank(context.Background(), "q", []string{"a"}, 1)
		var provErr *models.ProviderError
		require.True(t, errors.As(err, &provErr))
		assert.Equal(t, "Cohere", provErr.Provider)
		assert.Equal(t, http.StatusTooManyRequests, provErr.Status)
	})

	t.Run("Missing credential is a config error", func(t *testing.T) {
		r := NewCohereReranker(&config.RerankConfig{}, nil)
		assert.False(t, r.IsAvailable())
		_, err := r.Rerank(context.Background(), "q", []string{"a"}, 1)
		assert.True(t, models.IsConfigError(err))
	})
}
