package search

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/young1lin/flux/internal/config"
	"github.com/young1lin/flux/internal/models"
	"github.com/young1lin/flux/pkg/logger"
)

// Manager manages search providers
type Manager struct {
	providers       map[string]Provider
	order           []string
	defaultProvider string
}

// NewManager creates a new search manager. Providers without a credential
// are skipped; transport is shared by every provider client.
func NewManager(cfg *config.SearchConfig, transport http.RoundTripper) *Manager {
	m := &Manager{
		providers:       make(map[string]Provider),
		defaultProvider: cfg.Default,
	}

	// Dynamically create providers based on type
	for name, providerCfg := range cfg.Providers {
		if providerCfg.APIKey == "" {
			logger.Debug("skipping provider with no API key", zap.String("provider", name))
			continue
		}

		var provider Provider
		switch providerCfg.Type {
		case "tavily":
			provider = NewTavilyProvider(name, &providerCfg, transport)
		case "firecrawl":
			provider = NewFirecrawlProvider(name, &providerCfg, transport)
		default:
			logger.Warn("unknown provider type, skipping",
				zap.String("provider", name),
				zap.String("type", providerCfg.Type))
			continue
		}

		m.register(name, provider)
		logger.Info("provider initialized",
			zap.String("name", name),
			zap.String("type", providerCfg.Type),
		)
	}

	logger.Info("search manager initialized",
		zap.String("default_provider", cfg.Default),
		zap.Int("provider_count", len(m.providers)),
	)

	return m
}

// NewManagerWith builds a manager from ready providers, the first being the default
func NewManagerWith(providers ...Provider) *Manager {
	m := &Manager{providers: make(map[string]Provider)}
	for _, p := range providers {
		if m.defaultProvider == "" {
			m.defaultProvider = p.Name()
		}
		m.register(p.Name(), p)
	}
	return m
}

func (m *Manager) register(name string, p Provider) {
	if _, ok := m.providers[name]; !ok {
		m.order = append(m.order, name)
		sort.Strings(m.order)
	}
	m.providers[name] = p
}

// HasAvailableProvider returns true if there's at least one available provider
func (m *Manager) HasAvailableProvider() bool {
	return m.pick() != nil
}

// IsProviderReady reports whether the named provider is configured
func (m *Manager) IsProviderReady(name string) bool {
	p, ok := m.providers[name]
	return ok && p.IsAvailable()
}

// pick returns the default provider, falling back to any available one
// in name order.
func (m *Manager) pick() Provider {
	if m.defaultProvider != "" {
		if p, ok := m.providers[m.defaultProvider]; ok && p.IsAvailable() {
			return p
		}
	}
	for _, name := range m.order {
		if p := m.providers[name]; p.IsAvailable() {
			return p
		}
	}
	return nil
}

// Search performs a search using the default provider
func (m *Manager) Search(ctx context.Context, query string, opts Options) (*models.SearchProviderResult, error) {
	p := m.pick()
	if p == nil {
		return nil, &models.ConfigError{Key: "search provider API key"}
	}
	if p.Name() != m.defaultProvider {
		logger.Debug("using fallback provider",
			zap.String("provider", p.Name()),
			zap.String("query", query),
		)
	}
	return p.Search(ctx, query, opts)
}

// SearchWithProvider performs a search using a specific provider
func (m *Manager) SearchWithProvider(ctx context.Context, providerName, query string, opts Options) (*models.SearchProviderResult, error) {
	p, ok := m.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerName)
	}
	if !p.IsAvailable() {
		return nil, &models.ConfigError{Key: providerName + " API key"}
	}
	return p.Search(ctx, query, opts)
}

// Using returns a Searcher pinned to one provider. An empty name
// returns the manager itself.
func (m *Manager) Using(providerName string) Searcher {
	if providerName == "" {
		return m
	}
	return pinnedSearcher{m: m, provider: providerName}
}

type pinnedSearcher struct {
	m        *Manager
	provider string
}

func (p pinnedSearcher) Search(ctx context.Context, query string, opts Options) (*models.SearchProviderResult, error) {
	return p.m.SearchWithProvider(ctx, p.provider, query, opts)
}

// Extract delegates to the first available provider that can extract pages
func (m *Manager) Extract(ctx context.Context, urls []string) (*models.ExtractResult, error) {
	candidates := append([]string{m.defaultProvider}, m.order...)
	for _, name := range candidates {
		p, ok := m.providers[name]
		if !ok || !p.IsAvailable() {
			continue
		}
		if ex, ok := p.(Extractor); ok {
			return ex.Extract(ctx, urls)
		}
	}
	return nil, &models.ConfigError{Key: "TAVILY_API_KEY"}
}

// CanExtract reports whether any available provider supports extraction
func (m *Manager) CanExtract() bool {
	for _, p := range m.providers {
		if _, ok := p.(Extractor); ok && p.IsAvailable() {
			return true
		}
	}
	return false
}
