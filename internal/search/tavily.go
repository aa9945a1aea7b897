package search

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/young1lin/flux/internal/config"
	"github.com/young1lin/flux/internal/httputil"
	"github.com/young1lin/flux/internal/models"
	"github.com/young1lin/flux/pkg/logger"
)

const tavilyName = "Tavily"

// TavilyProvider implements the Provider interface using the Tavily API.
// It also serves page extraction through the same credential.
type TavilyProvider struct {
	name       string
	apiKey     string
	baseURL    string
	maxResults int
	depth      Depth
	client     *http.Client
	log        *zap.Logger
}

// NewTavilyProvider creates a new Tavily provider. A nil transport uses
// http.DefaultTransport.
func NewTavilyProvider(name string, cfg *config.ProviderConfig, transport http.RoundTripper) *TavilyProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	maxResults := cfg.MaxResults
	if maxResults == 0 {
		maxResults = MaxResultsLimit
	}

	return &TavilyProvider{
		name:       name,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: maxResults,
		depth:      Depth(cfg.SearchDepth),
		client:     httputil.NewClient(cfg.Timeout, transport),
		log:        logger.Named("tavily"),
	}
}

// Name returns the provider name
func (p *TavilyProvider) Name() string {
	return p.name
}

// IsAvailable returns true if the provider is properly configured
func (p *TavilyProvider) IsAvailable() bool {
	return p.apiKey != ""
}

type tavilySearchRequest struct {
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth"`
	MaxResults        int      `json:"max_results"`
	Topic             string   `json:"topic"`
	TimeRange         string   `json:"time_range,omitempty"`
	StartDate         string   `json:"start_date,omitempty"`
	EndDate           string   `json:"end_date,omitempty"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
	ExcludeDomains    []string `json:"exclude_domains,omitempty"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
	IncludeFavicon    bool     `json:"include_favicon"`
}

type tavilySearchResponse struct {
	Query        string               `json:"query"`
	Answer       string               `json:"answer,omitempty"`
	Results      []tavilySearchResult `json:"results"`
	ResponseTime float64              `json:"response_time"`
}

type tavilySearchResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	RawContent string  `json:"raw_content,omitempty"`
	Favicon    string  `json:"favicon,omitempty"`
}

// Search performs a search query using Tavily
func (p *TavilyProvider) Search(ctx context.Context, query string, opts Options) (*models.SearchProviderResult, error) {
	query, err := ValidateQuery(query)
	if err != nil {
		return nil, err
	}
	if !p.IsAvailable() {
		return nil, &models.ConfigError{Key: "TAVILY_API_KEY"}
	}

	if opts.MaxResults <= 0 {
		opts.MaxResults = p.maxResults
	}
	opts = opts.normalized(p.depth)

	reqBody := tavilySearchRequest{
		Query:             query,
		SearchDepth:       string(opts.Depth),
		MaxResults:        opts.MaxResults,
		Topic:             string(opts.Topic),
		TimeRange:         string(opts.TimeRange),
		StartDate:         opts.StartDate,
		EndDate:           opts.EndDate,
		IncludeDomains:    opts.IncludeDomains,
		ExcludeDomains:    opts.ExcludeDomains,
		IncludeRawContent: opts.IncludeRawContent,
		IncludeFavicon:    opts.IncludeFavicon,
	}

	var searchResp tavilySearchResponse
	if err := httputil.PostJSON(ctx, p.client, p.log, tavilyName, p.baseURL+"/search", p.apiKey, reqBody, &searchResp); err != nil {
		return nil, err
	}

	result := &models.SearchProviderResult{
		Query:        query,
		Provider:     p.name,
		Results:      make([]models.SearchCandidate, 0, len(searchResp.Results)),
		ResponseTime: searchResp.ResponseTime,
	}
	for _, item := range searchResp.Results {
		result.Results = append(result.Results, models.SearchCandidate{
			Title:      item.Title,
			URL:        item.URL,
			Content:    item.Content,
			Score:      item.Score,
			RawContent: item.RawContent,
			Favicon:    item.Favicon,
		})
	}

	p.log.Info("tavily search completed",
		zap.String("provider", p.name),
		zap.String("query", query),
		zap.String("topic", string(opts.Topic)),
		zap.Int("result_count", len(result.Results)),
	)

	return result, nil
}

type tavilyExtractRequest struct {
	URLs   []string `json:"urls"`
	Format string   `json:"format"`
}

type tavilyExtractResponse struct {
	Results       []models.ExtractedPage `json:"results"`
	FailedResults []models.FailedPage    `json:"failed_results"`
}

// Extract fetches the raw markdown content of each URL
func (p *TavilyProvider) Extract(ctx context.Context, urls []string) (*models.ExtractResult, error) {
	if !p.IsAvailable() {
		return nil, &models.ConfigError{Key: "TAVILY_API_KEY"}
	}
	if len(urls) == 0 {
		return &models.ExtractResult{Results: []models.ExtractedPage{}}, nil
	}

	var extractResp tavilyExtractResponse
	reqBody := tavilyExtractRequest{URLs: urls, Format: "markdown"}
	if err := httputil.PostJSON(ctx, p.client, p.log, tavilyName, p.baseURL+"/extract", p.apiKey, reqBody, &extractResp); err != nil {
		return nil, err
	}

	if extractResp.Results == nil {
		extractResp.Results = []models.ExtractedPage{}
	}

	p.log.Info("tavily extract completed",
		zap.Int("requested", len(urls)),
		zap.Int("extracted", len(extractResp.Results)),
		zap.Int("failed", len(extractResp.FailedResults)),
	)

	return &models.ExtractResult{
		Results:       extractResp.Results,
		FailedResults: extractResp.FailedResults,
	}, nil
}
