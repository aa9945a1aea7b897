package search

import (
	"context"

	"github.com/young1lin/flux/internal/models"
)

// Provider defines the interface for search providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Search performs a search query and returns results in provider order
	Search(ctx context.Context, query string, opts Options) (*models.SearchProviderResult, error)

	// IsAvailable returns true if the provider is properly configured
	IsAvailable() bool
}

// Searcher is what the pipeline needs from the search layer.
// Both single providers and the Manager satisfy it.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) (*models.SearchProviderResult, error)
}

// Extractor fetches page content for a list of URLs
type Extractor interface {
	Extract(ctx context.Context, urls []string) (*models.ExtractResult, error)
}
