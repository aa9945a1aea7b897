package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/young1lin/flux/internal/contents"
	"github.com/young1lin/flux/internal/models"
	"github.com/young1lin/flux/internal/search"
	"github.com/young1lin/flux/pkg/logger"
)

const (
	defaultSearchLimit = 10
	maxContentURLs     = 10
)

// Search handles GET /search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query, err := h.pipeline.ValidateQuery(q.Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := defaultSearchLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > search.MaxResultsLimit {
			writeError(w, r, badRequest(CodeInvalidLimit, fmt.Sprintf("limit must be between 1 and %d", search.MaxResultsLimit)))
			return
		}
		limit = n
	}

	opts, err := parseSearchOptions(q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	retrieval, err := h.pipeline.Search(r.Context(), query, limit, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(retrieval.Results) == 0 {
		writeError(w, r, models.ErrNoResults)
		return
	}

	results := make([]models.SearchResult, 0, len(retrieval.Results))
	for _, res := range retrieval.Results {
		results = append(results, models.NewSearchResult(res))
	}

	writeJSON(w, http.StatusOK, models.SearchResponse{
		Query:    retrieval.Query,
		Results:  results,
		Total:    len(results),
		Reranked: retrieval.Reranked,
	})
}

// Answer handles GET /answer
func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query, err := h.pipeline.ValidateQuery(q.Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts, err := parseSearchOptions(q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.pipeline.Answer(r.Context(), query, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseSearchOptions reads topic and days. Only general and news are
// exposed over HTTP.
func parseSearchOptions(q url.Values) (search.Options, error) {
	var opts search.Options

	if raw := q.Get("topic"); raw != "" {
		topic, ok := search.ParseTopic(raw)
		if !ok || topic == search.TopicFinance {
			return opts, badRequest(CodeInvalidTopic, "topic must be 'news' or 'general'")
		}
		opts.Topic = topic
	}

	if raw := q.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			return opts, badRequest(CodeInvalidDays, "days must be >= 1")
		}
		opts.Days = days
		opts.TimeRange = search.TimeRangeForDays(days)
	}
	return opts, nil
}

// Contents handles GET /contents
func (h *Handler) Contents(w http.ResponseWriter, r *http.Request) {
	urls, err := parseContentURLs(r.URL.Query().Get("urls"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.extractor == nil {
		writeError(w, r, &models.ConfigError{Key: "TAVILY_API_KEY"})
		return
	}

	res, err := h.extractor.Extract(r.Context(), urls)
	if err != nil {
		writeError(w, r, err)
		return
	}

	byURL := make(map[string]string, len(res.Results))
	for _, page := range res.Results {
		if _, seen := byURL[page.URL]; !seen {
			byURL[page.URL] = page.RawContent
		}
	}

	pages := make([]models.PageContent, 0, len(urls))
	for _, u := range urls {
		if raw, ok := byURL[u]; ok {
			pages = append(pages, contents.Page(u, &raw))
		} else {
			pages = append(pages, contents.Page(u, nil))
		}
	}

	logger.FromContext(r.Context()).Info("contents extracted",
		zap.Int("requested", len(urls)),
		zap.Int("extracted", len(byURL)),
		zap.Int("failed", len(res.FailedResults)),
	)
	writeJSON(w, http.StatusOK, pages)
}

func parseContentURLs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, badRequest(CodeMissingURLs, "missing required urls parameter")
	}

	var urls []string
	for _, part := range strings.Split(raw, ",") {
		if u := strings.TrimSpace(part); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) > maxContentURLs {
		return nil, badRequest(CodeTooManyURLs, fmt.Sprintf("maximum %d URLs allowed", maxContentURLs))
	}
	if len(urls) == 0 {
		return nil, badRequest(CodeMissingURLs, "at least one URL required")
	}

	for _, u := range urls {
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, badRequest(CodeInvalidURLs, "invalid URL format")
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, badRequest(CodeInvalidURLs, "URLs must use http or https")
		}
		if strings.TrimSpace(parsed.Host) == "" {
			return nil, badRequest(CodeInvalidURLs, "invalid URL: missing host")
		}
	}
	return urls, nil
}
