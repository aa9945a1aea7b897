// Package pipeline runs retrieve, rerank and synthesize for one query and
// turns the outcome into a conversation turn.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/young1lin/flux/internal/answer"
	"github.com/young1lin/flux/internal/config"
	"github.com/young1lin/flux/internal/httputil"
	"github.com/young1lin/flux/internal/models"
	"github.com/young1lin/flux/internal/reconcile"
	"github.com/young1lin/flux/internal/rerank"
	"github.com/young1lin/flux/internal/search"
	"github.com/young1lin/flux/pkg/logger"
)

// ErrSynthesisUnavailable means no synthesizer is configured
var ErrSynthesisUnavailable = errors.New("answer synthesis not configured")

// Synthesizer turns a prompt into answer text
type Synthesizer interface {
	Synthesize(ctx context.Context, prompt answer.Prompt) (string, error)
	Model() string
}

// SearchError marks a failure of the search step
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string { return "search failed: " + e.Err.Error() }
func (e *SearchError) Unwrap() error { return e.Err }

// SynthesisError marks a failure of the synthesis step
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return "answer synthesis failed: " + e.Err.Error() }
func (e *SynthesisError) Unwrap() error { return e.Err }

// Settings are the tunables of a pipeline run
type Settings struct {
	CandidateCount int
	ResultLimit    int
	CitationLimit  int
	ContextTurns   int
	MaxQueryLength int
}

// DefaultSettings match the hosted service
func DefaultSettings() Settings {
	return Settings{
		CandidateCount: 20,
		ResultLimit:    10,
		CitationLimit:  5,
		ContextTurns:   3,
		MaxQueryLength: 500,
	}
}

// SettingsFromConfig fills unset values from DefaultSettings
func SettingsFromConfig(cfg config.PipelineConfig) Settings {
	s := DefaultSettings()
	if cfg.CandidateCount > 0 {
		s.CandidateCount = search.ClampResults(cfg.CandidateCount)
	}
	if cfg.ResultLimit > 0 {
		s.ResultLimit = cfg.ResultLimit
	}
	if cfg.CitationLimit > 0 {
		s.CitationLimit = cfg.CitationLimit
	}
	if cfg.ContextTurns >= 0 {
		s.ContextTurns = cfg.ContextTurns
	}
	if cfg.MaxQueryLength > 0 {
		s.MaxQueryLength = cfg.MaxQueryLength
	}
	return s
}

// Pipeline holds the collaborators of one deployment. It has no mutable
// state and is safe for concurrent use.
type Pipeline struct {
	searcher    search.Searcher
	reranker    rerank.Reranker
	synthesizer Synthesizer
	settings    Settings
	log         *zap.Logger
	now         func() time.Time
	newID       func() string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithReranker enables reranking; nil leaves it disabled
func WithReranker(r rerank.Reranker) Option {
	return func(p *Pipeline) { p.reranker = r }
}

// WithSynthesizer enables answer synthesis
func WithSynthesizer(s Synthesizer) Option {
	return func(p *Pipeline) { p.synthesizer = s }
}

func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(p *Pipeline) { p.newID = newID }
}

func WithSettings(s Settings) Option {
	return func(p *Pipeline) { p.settings = s }
}

// New creates a pipeline around searcher
func New(searcher search.Searcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		searcher: searcher,
		settings: DefaultSettings(),
		log:      logger.Named("pipeline"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Settings returns the active settings
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// Model is the synthesis model name, empty when synthesis is off
func (p *Pipeline) Model() string {
	if p.synthesizer == nil {
		return ""
	}
	return p.synthesizer.Model()
}

// Retrieval is the ranked outcome of search plus optional rerank
type Retrieval struct {
	Query       string
	Results     []models.RankedResult
	Reranked    bool
	RerankError error
}

// ValidateQuery trims query and checks it against the length limit
func (p *Pipeline) ValidateQuery(query string) (string, error) {
	query, err := search.ValidateQuery(query)
	if err != nil {
		return "", err
	}
	if utf8.RuneCountInString(query) > p.settings.MaxQueryLength {
		return "", models.ErrQueryTooLong
	}
	return query, nil
}

// Retrieve searches with retrievalQuery (or query when empty), reranks
// against query and reconciles. Search failures are returned as
// *SearchError; rerank failures degrade to provider order.
func (p *Pipeline) Retrieve(ctx context.Context, query, retrievalQuery string, opts search.Options) (*Retrieval, error) {
	query, err := p.ValidateQuery(query)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(retrievalQuery) == "" {
		retrievalQuery = query
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = p.settings.CandidateCount
	}

	res, err := p.searcher.Search(ctx, retrievalQuery, opts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &SearchError{Err: err}
	}

	candidates := res.Results
	retrieval := &Retrieval{Query: query}

	var entries []models.RerankEntry
	if len(candidates) > 0 {
		outcome := rerank.Attempt(ctx, p.reranker, query, rerank.BuildDocuments(candidates), len(candidates))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch {
		case outcome.OK():
			entries = outcome.Entries()
			retrieval.Reranked = len(entries) > 0
		case errors.Is(outcome.Reason(), rerank.ErrNotConfigured):
			retrieval.RerankError = outcome.Reason()
			p.log.Debug("rerank skipped", zap.String("reason", outcome.Reason().Error()))
		default:
			retrieval.RerankError = outcome.Reason()
			p.log.Warn("rerank failed, keeping provider order",
				zap.String("error", httputil.Redact(outcome.Reason().Error())),
				zap.Int("candidates", len(candidates)),
			)
		}
	}

	retrieval.Results = reconcile.Reconcile(candidates, entries)
	return retrieval, nil
}

// Search is Retrieve truncated to limit results (ResultLimit when <= 0)
func (p *Pipeline) Search(ctx context.Context, query string, limit int, opts search.Options) (*Retrieval, error) {
	retrieval, err := p.Retrieve(ctx, query, "", opts)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = p.settings.ResultLimit
	}
	if len(retrieval.Results) > limit {
		retrieval.Results = retrieval.Results[:limit]
	}
	return retrieval, nil
}

// Answer is the one-shot question path: retrieve, cite the top results
// and synthesize.
func (p *Pipeline) Answer(ctx context.Context, query string, opts search.Options) (*models.AnswerResponse, error) {
	if _, err := p.ValidateQuery(query); err != nil {
		return nil, err
	}
	if p.synthesizer == nil {
		return nil, &SynthesisError{Err: ErrSynthesisUnavailable}
	}

	retrieval, err := p.Retrieve(ctx, query, "", opts)
	if err != nil {
		return nil, err
	}
	if len(retrieval.Results) == 0 {
		return nil, models.ErrNoResults
	}

	sources := p.topSources(retrieval.Results)
	text, err := p.synthesizer.Synthesize(ctx, buildAnswerPrompt(retrieval.Query, sources))
	if err == nil && strings.TrimSpace(text) == "" {
		err = answer.ErrEmptyAnswer
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &SynthesisError{Err: err}
	}

	return &models.AnswerResponse{
		Query:     retrieval.Query,
		Answer:    text,
		Citations: reconcile.Citations(sources, 0),
		Model:     p.synthesizer.Model(),
	}, nil
}

// Run executes one conversation turn. Validation failures, a missing
// search credential and context cancellation are returned as errors and
// produce no turn. Every other outcome is a turn: Errored when search or
// synthesis failed, Answered otherwise.
func (p *Pipeline) Run(ctx context.Context, query string, history []models.ConversationTurn, opts search.Options) (models.ConversationTurn, error) {
	query, err := p.ValidateQuery(query)
	if err != nil {
		return models.ConversationTurn{}, err
	}

	contextQuery := BuildContextQuery(query, models.TurnQueries(history), p.settings.ContextTurns)

	log := p.log.With(zap.Int("history", len(history)))

	retrieval, err := p.Retrieve(ctx, query, contextQuery, opts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.ConversationTurn{}, ctxErr
		}
		if models.IsConfigError(err) {
			return models.ConversationTurn{}, err
		}
		msg := httputil.Redact(err.Error())
		log.Warn("search failed", zap.String("error", msg))
		return p.erroredTurn(query, msg), nil
	}

	sources := p.topSources(retrieval.Results)
	citations := reconcile.Citations(sources, 0)

	if p.synthesizer == nil {
		return p.erroredTurn(query, ErrSynthesisUnavailable.Error()), nil
	}

	text, err := p.synthesizer.Synthesize(ctx, buildConversationPrompt(query, history, sources))
	if err == nil && strings.TrimSpace(text) == "" {
		err = answer.ErrEmptyAnswer
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.ConversationTurn{}, ctxErr
		}
		msg := httputil.Redact((&SynthesisError{Err: err}).Error())
		log.Warn("synthesis failed", zap.String("error", msg))
		return p.erroredTurn(query, msg), nil
	}

	log.Info("turn answered",
		zap.Int("citations", len(citations)),
		zap.Bool("reranked", retrieval.Reranked),
	)
	return models.NewAnsweredTurn(p.newID(), query, text, citations, p.now()), nil
}

func (p *Pipeline) erroredTurn(query, msg string) models.ConversationTurn {
	return models.NewErroredTurn(p.newID(), query, msg, p.now())
}

func (p *Pipeline) topSources(results []models.RankedResult) []models.RankedResult {
	if n := p.settings.CitationLimit; n > 0 && len(results) > n {
		return results[:n]
	}
	return results
}

