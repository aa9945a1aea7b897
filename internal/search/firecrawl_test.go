package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young1lin/flux/internal/config"
)

func TestFirecrawlSearch(t *testing.T) {
	var got firecrawlSearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {"web": [
				{"url": "https://a.example", "title": "A", "description": "desc", "markdown": "# A"}
			]}
		}`))
	}))
	defer srv.Close()

	p := NewFirecrawlProvider("firecrawl", &config.ProviderConfig{BaseURL: srv.URL, APIKey: "fc-test"}, nil)
	res, err := p.Search(context.Background(), "golang", Options{TimeRange: TimeRangeMonth})
	require.NoError(t, err)

	assert.Equal(t, "golang", got.Query)
	assert.Equal(t, 5, got.Limit)
	assert.Equal(t, "qdr:m", got.TBS)

	require.Len(t, res.Results, 1)
	assert.Equal(t, "desc", res.Results[0].Content)
	assert.Equal(t, "# A", res.Results[0].RawContent)
	assert.Zero(t, res.Results[0].Score)
}

func TestFirecrawlSearch_Unsuccessful(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "error": "quota exceeded"}`))
	}))
	defer srv.Close()

	p := NewFirecrawlProvider("firecrawl", &config.ProviderConfig{BaseURL: srv.URL, APIKey: "fc-test"}, nil)
	_, err := p.Search(context.Background(), "golang", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
