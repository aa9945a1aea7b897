package rerank

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

const cohereName = "Cohere"

// CohereReranker calls the Cohere v2 rerank endpoint
type CohereReranker struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	log     *zap.Logger
}

// NewCohereReranker creates a reranker from config. A nil transport uses
// http.DefaultTransport.
func NewCohereReranker(cfg *config.RerankConfig, transport http.RoundTripper) *CohereReranker {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.cohere.com"
	}
	model := cfg.Model
	if model == "" {
		model = "rerank-v3.5"
	}
	return &CohereReranker{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  httputil.NewClient(cfg.Timeout, transport),
		log:     logger.Named("cohere"),
	}
}

func (c *CohereReranker) Name() string { return "cohere" }

func (c *CohereReranker) IsAvailable() bool { return c.apiKey != "" }

type cohereRerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type cohereRerankResponse struct {
	Results []cohereRerankResult `json:"results"`
}

type cohereRerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Rerank scores documents against query. Empty documents return an empty
// slice without a network call.
func (c *CohereReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]models.RerankEntry, error) {
	if len(documents) == 0 {
		return []models.RerankEntry{}, nil
	}
	if !c.IsAvailable() {
		return nil, &models.ConfigError{Key: "COHERE_API_KEY"}
	}

	reqBody := cohereRerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      clampTopN(topN, len(documents)),
	}

	var resp cohereRerankResponse
	if err := httputil.PostJSON(ctx, c.client, c.log, cohereName, c.baseURL+"/v2/rerank", c.apiKey, reqBody, &resp); err != nil {
		return nil, err
	}

	entries := make([]models.RerankEntry, 0, len(resp.Results))
	for _, r := range resp.Results {
		entries = append(entries, models.RerankEntry{
			OriginalIndex:  r.Index,
			RelevanceScore: r.RelevanceScore,
		})
	}

	c.log.Debug("rerank completed",
		zap.String("model", c.model),
		zap.Int("documents", len(documents)),
		zap.Int("top_n", reqBody.TopN),
		zap.Int("entries", len(entries)),
	)

	return entries, nil
}
