// Package rerank reorders search candidates by semantic relevance to a query.
//
// Reranking is optional. When no reranker is configured, or the call fails,
// callers keep the provider's order; Attempt makes that branch explicit.
package rerank

import (
	"context"
	"errors"

	"github.com/young1lin/flux/internal/models"
)

// ErrNotConfigured is the reason reported when no reranker is available
var ErrNotConfigured = errors.New("reranker not configured")

// Reranker scores documents against a query.
type Reranker interface {
	Name() string
	IsAvailable() bool

	// Rerank returns entries in descending relevance. Each entry points back
	// into documents by index. topN <= 0 means all documents.
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]models.RerankEntry, error)
}

// Outcome is the result of a rerank attempt: either entries or the reason
// reranking was unavailable.
type Outcome struct {
	entries []models.RerankEntry
	reason  error
}

// Success wraps entries from a completed rerank call
func Success(entries []models.RerankEntry) Outcome {
	if entries == nil {
		entries = []models.RerankEntry{}
	}
	return Outcome{entries: entries}
}

// Unavailable records why reranking did not happen
func Unavailable(reason error) Outcome {
	if reason == nil {
		reason = ErrNotConfigured
	}
	return Outcome{reason: reason}
}

// OK reports whether the rerank call succeeded
func (o Outcome) OK() bool { return o.reason == nil }

// Entries is nil when reranking was unavailable
func (o Outcome) Entries() []models.RerankEntry { return o.entries }

// Reason is nil on success
func (o Outcome) Reason() error { return o.reason }

// Attempt runs r and folds every failure into an Unavailable outcome.
// Context cancellation is reported as the reason like any other failure;
// callers that care check ctx themselves.
func Attempt(ctx context.Context, r Reranker, query string, documents []string, topN int) Outcome {
	if r == nil || !r.IsAvailable() {
		return Unavailable(ErrNotConfigured)
	}
	entries, err := r.Rerank(ctx, query, documents, topN)
	if err != nil {
		return Unavailable(err)
	}
	return Success(entries)
}

// BuildDocuments renders each candidate as "title\ncontent" in candidate order
func BuildDocuments(candidates []models.SearchCandidate) []string {
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Title + "\n" + c.Content
	}
	return docs
}

// clampTopN bounds topN to the number of documents
func clampTopN(topN, n int) int {
	if topN <= 0 || topN > n {
		return n
	}
	return topN
}
