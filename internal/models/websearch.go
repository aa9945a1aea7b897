package models

// SearchProviderResult represents the result from a search provider
type SearchProviderResult struct {
	Query        string            `json:"query"`
	Provider     string            `json:"provider"`
	Results      []SearchCandidate `json:"results"`
	ResponseTime float64           `json:"response_time,omitempty"`
}

// SearchCandidate is one web document returned by a search provider.
// Score is provider-defined and only meaningful within a single response.
type SearchCandidate struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	RawContent string  `json:"raw_content,omitempty"`
	Favicon    string  `json:"favicon,omitempty"`
}

// RerankEntry points back into the candidate list handed to the reranker.
type RerankEntry struct {
	OriginalIndex  int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// RankedResult is a candidate in final presentation order.
type RankedResult struct {
	Candidate    SearchCandidate `json:"candidate"`
	Rank         int             `json:"rank"`
	OriginalRank int             `json:"original_rank"`
	RerankScore  *float64        `json:"rerank_score,omitempty"`
}

// ExtractedPage is the raw content fetched for one URL
type ExtractedPage struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
}

// FailedPage is a URL the extractor could not fetch
type FailedPage struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// ExtractResult represents the result of a content extraction call
type ExtractResult struct {
	Results       []ExtractedPage `json:"results"`
	FailedResults []FailedPage    `json:"failed_results,omitempty"`
}
