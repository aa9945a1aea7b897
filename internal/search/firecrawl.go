package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/young1lin/flux/internal/config"
	"github.com/young1lin/flux/internal/httputil"
	"github.com/young1lin/flux/internal/models"
	"github.com/young1lin/flux/pkg/logger"
)

const firecrawlName = "Firecrawl"

// FirecrawlProvider implements the Provider interface using Firecrawl API.
// Firecrawl returns no relevance score, so candidates carry Score 0.
type FirecrawlProvider struct {
	name       string
	apiKey     string
	baseURL    string
	maxResults int
	client     *http.Client
	log        *zap.Logger
}

// NewFirecrawlProvider creates a new Firecrawl provider
func NewFirecrawlProvider(name string, cfg *config.ProviderConfig, transport http.RoundTripper) *FirecrawlProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev/v2"
	}
	maxResults := cfg.MaxResults
	if maxResults == 0 {
		maxResults = 5
	}

	return &FirecrawlProvider{
		name:       name,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: maxResults,
		client:     httputil.NewClient(cfg.Timeout, transport),
		log:        logger.Named("firecrawl"),
	}
}

// Name returns the provider name
func (p *FirecrawlProvider) Name() string {
	return p.name
}

// IsAvailable returns true if the provider is properly configured
func (p *FirecrawlProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// firecrawlSearchRequest represents the search request body
type firecrawlSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	TBS   string `json:"tbs,omitempty"`
}

// firecrawlSearchResponse represents the search response
type firecrawlSearchResponse struct {
	Success bool                 `json:"success"`
	Data    *firecrawlSearchData `json:"data,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type firecrawlSearchData struct {
	Web []firecrawlSearchResult `json:"web,omitempty"`
}

type firecrawlSearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Markdown    string `json:"markdown,omitempty"`
}

// firecrawlTBS maps a time range to Firecrawl's Google-style tbs filter
var firecrawlTBS = map[TimeRange]string{
	TimeRangeDay:   "qdr:d",
	TimeRangeWeek:  "qdr:w",
	TimeRangeMonth: "qdr:m",
	TimeRangeYear:  "qdr:y",
}

// Search performs a search query using Firecrawl
func (p *FirecrawlProvider) Search(ctx context.Context, query string, opts Options) (*models.SearchProviderResult, error) {
	query, err := ValidateQuery(query)
	if err != nil {
		return nil, err
	}
	if !p.IsAvailable() {
		return nil, &models.ConfigError{Key: "FIRECRAWL_API_KEY"}
	}

	if opts.MaxResults <= 0 {
		opts.MaxResults = p.maxResults
	}
	opts = opts.normalized(DepthBasic)

	reqBody := firecrawlSearchRequest{
		Query: query,
		Limit: opts.MaxResults,
		TBS:   firecrawlTBS[opts.TimeRange],
	}

	start := time.Now()
	var searchResp firecrawlSearchResponse
	if err := httputil.PostJSON(ctx, p.client, p.log, firecrawlName, p.baseURL+"/search", p.apiKey, reqBody, &searchResp); err != nil {
		return nil, err
	}

	if !searchResp.Success {
		errMsg := searchResp.Error
		if errMsg == "" {
			errMsg = "unknown error"
		}
		return nil, fmt.Errorf("firecrawl search failed: %s", errMsg)
	}

	result := &models.SearchProviderResult{
		Query:        query,
		Provider:     p.name,
		Results:      make([]models.SearchCandidate, 0),
		ResponseTime: time.Since(start).Seconds(),
	}

	if searchResp.Data != nil {
		for _, item := range searchResp.Data.Web {
			result.Results = append(result.Results, models.SearchCandidate{
				Title:      item.Title,
				URL:        item.URL,
				Content:    item.Description,
				RawContent: item.Markdown,
			})
		}
	}

	p.log.Info("firecrawl search completed",
		zap.String("provider", p.name),
		zap.String("query", query),
		zap.Int("result_count", len(result.Results)),
	)

	return result, nil
}
