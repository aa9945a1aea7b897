package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const snippetLength = 300

// SearchResult is one hit in the /search response
type SearchResult struct {
	ID           string  `json:"id"`
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	Snippet      string  `json:"snippet"`
	Score        float64 `json:"score"`
	Rank         int     `json:"rank"`
	OriginalRank int     `json:"original_rank"`
}

// SearchResponse is the body of GET /search
type SearchResponse struct {
	Query    string         `json:"query"`
	Results  []SearchResult `json:"results"`
	Total    int            `json:"total"`
	Reranked bool           `json:"reranked"`
}

// AnswerResponse is the body of GET /answer
type AnswerResponse struct {
	Query     string     `json:"query"`
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Model     string     `json:"model"`
}

// PageContent is one entry of GET /contents
type PageContent struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
	Success   bool   `json:"success"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// AddMessageRequest is the body of POST /conversations/{id}/messages
type AddMessageRequest struct {
	Query string `json:"query"`
}

// ConversationView is the rendered form of a conversation
type ConversationView struct {
	ID           string             `json:"id"`
	CreatedAt    time.Time          `json:"created_at"`
	MessageCount int                `json:"message_count"`
	Messages     []ConversationTurn `json:"messages"`
}

// NewConversationView renders c with a recomputed message count
func NewConversationView(c *Conversation) ConversationView {
	turns := c.Turns
	if turns == nil {
		turns = []ConversationTurn{}
	}
	return ConversationView{
		ID:           c.ID,
		CreatedAt:    c.CreatedAt,
		MessageCount: c.MessageCount(),
		Messages:     turns,
	}
}

// ConversationListResponse is the body of GET /conversations
type ConversationListResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
	Page          int                   `json:"page"`
	PageSize      int                   `json:"page_size"`
}

// NewSearchResult converts a ranked result into its API form
func NewSearchResult(r RankedResult) SearchResult {
	return SearchResult{
		ID:           URLID(r.Candidate.URL),
		URL:          r.Candidate.URL,
		Title:        r.Candidate.Title,
		Snippet:      Snippet(r.Candidate.Content),
		Score:        r.Score(),
		Rank:         r.Rank,
		OriginalRank: r.OriginalRank,
	}
}

// Score returns the rerank score when present, otherwise the provider score
func (r RankedResult) Score() float64 {
	if r.RerankScore != nil {
		return roundScore(*r.RerankScore)
	}
	return r.Candidate.Score
}

// URLID is a stable short identifier derived from a URL
func URLID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:16]
}

func roundScore(v float64) float64 {
	const scale = 10000
	if v < 0 {
		return float64(int64(v*scale-0.5)) / scale
	}
	return float64(int64(v*scale+0.5)) / scale
}

// Snippet truncates content to the length shown in results and prompts
func Snippet(content string) string {
	return truncateRunes(content, snippetLength)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
