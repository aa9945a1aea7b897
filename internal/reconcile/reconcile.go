// Package reconcile merges provider order with rerank output into the final
// presentation order.
package reconcile

import "github.com/young1lin/flux/internal/models"

// Reconcile orders original by entries.
//
// With no entries the provider order is kept and Rank == OriginalRank.
// Otherwise the output follows entry order; entries whose index is out of
// range or already used are dropped, and candidates no entry names are
// dropped too. Ranks are contiguous from 1 over the survivors.
func Reconcile(original []models.SearchCandidate, entries []models.RerankEntry) []models.RankedResult {
	if len(entries) == 0 {
		out := make([]models.RankedResult, len(original))
		for i, c := range original {
			out[i] = models.RankedResult{Candidate: c, Rank: i + 1, OriginalRank: i + 1}
		}
		return out
	}

	out := make([]models.RankedResult, 0, len(entries))
	seen := make(map[int]bool, len(entries))
	for _, e := range entries {
		if e.OriginalIndex < 0 || e.OriginalIndex >= len(original) || seen[e.OriginalIndex] {
			continue
		}
		seen[e.OriginalIndex] = true

		score := e.RelevanceScore
		out = append(out, models.RankedResult{
			Candidate:    original[e.OriginalIndex],
			Rank:         len(out) + 1,
			OriginalRank: e.OriginalIndex + 1,
			RerankScore:  &score,
		})
	}
	return out
}

// Citations projects the first limit results; limit <= 0 keeps all
func Citations(results []models.RankedResult, limit int) []models.Citation {
	if limit <= 0 || limit > len(results) {
		limit = len(results)
	}
	citations := make([]models.Citation, 0, limit)
	for _, r := range results[:limit] {
		citations = append(citations, models.Citation{
			Title: r.Candidate.Title,
			URL:   r.Candidate.URL,
			Score: r.Score(),
			Rank:  r.Rank,
		})
	}
	return citations
}
