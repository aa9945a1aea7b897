package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young1lin/flux/internal/answer"
	"github.com/young1lin/flux/internal/models"
	"github.com/young1lin/flux/internal/rerank"
	"github.com/young1lin/flux/internal/search"
)

type fakeSearcher struct {
	results []models.SearchCandidate
	err     error
	queries []string
	opts    []search.Options
	cancel  context.CancelFunc
}

func (f *fakeSearcher) Search(_ context.Context, query string, opts search.Options) (*models.SearchProviderResult, error) {
	f.queries = append(f.queries, query)
	f.opts = append(f.opts, opts)
	if f.cancel != nil {
		f.cancel()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.SearchProviderResult{Query: query, Results: f.results}, nil
}

type fakeReranker struct {
	available bool
	entries   []models.RerankEntry
	err       error
	calls     int
	query     string
	docs      []string
	topN      int
}

func (f *fakeReranker) Name() string      { return "fake" }
func (f *fakeReranker) IsAvailable() bool { return f.available }

func (f *fakeReranker) Rerank(_ context.Context, query string, docs []string, topN int) ([]models.RerankEntry, error) {
	f.calls++
	f.query, f.docs, f.topN = query, docs, topN
	return f.entries, f.err
}

type fakeSynthesizer struct {
	text    string
	err     error
	prompts []answer.Prompt
	cancel  context.CancelFunc
}

func (f *fakeSynthesizer) Model() string { return "fake-model" }

func (f *fakeSynthesizer) Synthesize(_ context.Context, prompt answer.Prompt) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.cancel != nil {
		f.cancel()
	}
	return f.text, f.err
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func svbCandidates() []models.SearchCandidate {
	return []models.SearchCandidate{
		{Title: "SVB collapse explained", URL: "https://news.example/svb", Content: "The collapse of SVB...", Score: 0.8},
		{Title: "Banking basics", URL: "https://bank.example/basics", Content: "Banks take deposits...", Score: 0.6},
		{Title: "Silicon Valley Bank", URL: "https://wiki.example/svb", Content: "Silicon Valley Bank was...", Score: 0.4},
	}
}

func newTestPipeline(s search.Searcher, opts ...Option) *Pipeline {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "turn-1" }),
	}
	return New(s, append(base, opts...)...)
}

func TestRun_WhatIsSVB(t *testing.T) {
	searcher := &fakeSearcher{results: svbCandidates()}
	reranker := &fakeReranker{available: true, entries: []models.RerankEntry{
		{OriginalIndex: 2, RelevanceScore: 0.95},
		{OriginalIndex: 0, RelevanceScore: 0.7},
	}}
	synth := &fakeSynthesizer{text: "SVB is Silicon Valley Bank [1]."}
	p := newTestPipeline(searcher, WithReranker(reranker), WithSynthesizer(synth))

	turn, err := p.Run(context.Background(), "What is SVB?", nil, search.Options{})
	require.NoError(t, err)

	assert.True(t, turn.Answered())
	assert.NoError(t, turn.Validate())
	assert.Equal(t, "turn-1", turn.ID)
	assert.Equal(t, fixedNow, turn.CreatedAt)
	assert.Equal(t, "SVB is Silicon Valley Bank [1].", turn.Answer)
	assert.Equal(t, []models.Citation{
		{Title: "Silicon Valley Bank", URL: "https://wiki.example/svb", Score: 0.95, Rank: 1},
		{Title: "SVB collapse explained", URL: "https://news.example/svb", Score: 0.7, Rank: 2},
	}, turn.Citations)

	assert.Equal(t, "What is SVB?", reranker.query)
	assert.Equal(t, 3, reranker.topN)
	assert.Equal(t, "SVB collapse explained\nThe collapse of SVB...", reranker.docs[0])

	require.Len(t, synth.prompts, 1)
	assert.Contains(t, synth.prompts[0].User, "[1] Silicon Valley Bank")
	assert.Contains(t, synth.prompts[0].User, "[2] SVB collapse explained")
	assert.NotContains(t, synth.prompts[0].User, "Banking basics")
}

func TestRun_SearchesWithHistoryQueries(t *testing.T) {
	searcher := &fakeSearcher{results: svbCandidates()}
	reranker := &fakeReranker{available: true, entries: []models.RerankEntry{{OriginalIndex: 0, RelevanceScore: 0.9}}}
	p := newTestPipeline(searcher, WithReranker(reranker), WithSynthesizer(&fakeSynthesizer{text: "answer"}))

	history := []models.ConversationTurn{
		models.NewAnsweredTurn("t1", "a", "x", nil, fixedNow),
		models.NewAnsweredTurn("t2", "b", "x", nil, fixedNow),
		models.NewErroredTurn("t3", "c", "failed", fixedNow),
		models.NewAnsweredTurn("t4", "d", "x", nil, fixedNow),
	}
	_, err := p.Run(context.Background(), "now", history, search.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"b c d now"}, searcher.queries)
	assert.Equal(t, "now", reranker.query)
}

func TestRun_RerankFailureDegrades(t *testing.T) {
	searcher := &fakeSearcher{results: svbCandidates()}
	reranker := &fakeReranker{available: true, err: &models.ProviderError{Provider: "Cohere", Status: 500, Body: "down"}}
	p := newTestPipeline(searcher, WithReranker(reranker), WithSynthesizer(&fakeSynthesizer{text: "answer"}))

	turn, err := p.Run(context.Background(), "What is SVB?", nil, search.Options{})
	require.NoError(t, err)

	assert.True(t, turn.Answered())
	require.Len(t, turn.Citations, 3)
	for i, c := range turn.Citations {
		assert.Equal(t, i+1, c.Rank)
		assert.Equal(t, svbCandidates()[i].URL, c.URL)
		assert.Equal(t, svbCandidates()[i].Score, c.Score)
	}
}

func TestRun_UnconfiguredRerankerIsNotCalled(t *testing.T) {
	reranker := &fakeReranker{}
	p := newTestPipeline(&fakeSearcher{results: svbCandidates()}, WithReranker(reranker), WithSynthesizer(&fakeSynthesizer{text: "a"}))

	turn, err := p.Run(context.Background(), "q", nil, search.Options{})
	require.NoError(t, err)
	assert.True(t, turn.Answered())
	assert.Zero(t, reranker.calls)
}

func TestRun_SearchFailureIsErroredTurn(t *testing.T) {
	searcher := &fakeSearcher{err: &models.ProviderError{Provider: "Tavily", Status: 502, Body: "Bearer tvly-secret rejected"}}
	synth := &fakeSynthesizer{text: "never"}
	p := newTestPipeline(searcher, WithSynthesizer(synth))

	turn, err := p.Run(context.Background(), "q", nil, search.Options{})
	require.NoError(t, err)

	assert.False(t, turn.Answered())
	assert.NoError(t, turn.Validate())
	assert.Contains(t, turn.Error, "Tavily API error 502")
	assert.NotContains(t, turn.Error, "tvly-secret")
	assert.Empty(t, turn.Citations)
	assert.Empty(t, synth.prompts)
}

func TestRun_MissingSearchCredentialIsReturned(t *testing.T) {
	p := newTestPipeline(&fakeSearcher{err: &models.ConfigError{Key: "TAVILY_API_KEY"}})

	_, err := p.Run(context.Background(), "q", nil, search.Options{})
	assert.True(t, models.IsConfigError(err))
}

func TestRun_SynthesisOutcomes(t *testing.T) {
	t.Run("Not configured", func(t *testing.T) {
		p := newTestPipeline(&fakeSearcher{results: svbCandidates()})
		turn, err := p.Run(context.Background(), "q", nil, search.Options{})
		require.NoError(t, err)
		assert.Equal(t, ErrSynthesisUnavailable.Error(), turn.Error)
		assert.Empty(t, turn.Citations)
	})

	t.Run("Failure", func(t *testing.T) {
		synth := &fakeSynthesizer{err: errors.New("quota exceeded")}
		p := newTestPipeline(&fakeSearcher{results: svbCandidates()}, WithSynthesizer(synth))
		turn, err := p.Run(context.Background(), "q", nil, search.Options{})
		require.NoError(t, err)
		assert.Equal(t, "answer synthesis failed: quota exceeded", turn.Error)
		assert.Empty(t, turn.Answer)
	})

	t.Run("No results still answers", func(t *testing.T) {
		p := newTestPipeline(&fakeSearcher{}, WithSynthesizer(&fakeSynthesizer{text: "Hello!"}))
		turn, err := p.Run(context.Background(), "hi", nil, search.Options{})
		require.NoError(t, err)
		assert.True(t, turn.Answered())
		assert.Empty(t, turn.Citations)
	})
}

func TestRun_MutualExclusivity(t *testing.T) {
	searchers := []*fakeSearcher{
		{results: svbCandidates()},
		{},
		{err: errors.New("boom")},
	}
	synths := []*fakeSynthesizer{
		{text: "answer"},
		{err: errors.New("fail")},
		{text: "   "},
		nil,
	}
	for _, s := range searchers {
		for _, syn := range synths {
			opts := []Option{WithReranker(&fakeReranker{available: true, err: errors.New("rerank down")})}
			if syn != nil {
				opts = append(opts, WithSynthesizer(syn))
			}
			turn, err := newTestPipeline(s, opts...).Run(context.Background(), "q", nil, search.Options{})
			require.NoError(t, err)
			assert.NoError(t, turn.Validate())
		}
	}
}

func TestRun_Validation(t *testing.T) {
	searcher := &fakeSearcher{}
	p := newTestPipeline(searcher)

	_, err := p.Run(context.Background(), "   ", nil, search.Options{})
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	_, err = p.Run(context.Background(), strings.Repeat("a", 501), nil, search.Options{})
	assert.ErrorIs(t, err, models.ErrQueryTooLong)

	assert.Empty(t, searcher.queries)
}

func TestRun_ContextQuery(t *testing.T) {
	searcher := &fakeSearcher{results: svbCandidates()}
	reranker := &fakeReranker{available: true}
	synth := &fakeSynthesizer{text: "a"}
	p := newTestPipeline(searcher, WithReranker(reranker), WithSynthesizer(synth))

	history := []models.ConversationTurn{
		models.NewAnsweredTurn("1", "first", "one", nil, fixedNow),
		models.NewErroredTurn("2", "second", "failed", fixedNow),
		models.NewAnsweredTurn("3", "third", "three", nil, fixedNow),
		models.NewAnsweredTurn("4", "fourth", "four", nil, fixedNow),
	}

	_, err := p.Run(context.Background(), "fifth", history, search.Options{})
	require.NoError(t, err)

	require.Len(t, searcher.queries, 1)
	assert.Equal(t, "second third fourth fifth", searcher.queries[0])
	assert.Equal(t, 20, searcher.opts[0].MaxResults)
	assert.Equal(t, "fifth", reranker.query, "rerank uses the current query only")

	prompt := synth.prompts[0].User
	assert.Contains(t, prompt, "Q: first\nA: one")
	assert.NotContains(t, prompt, "Q: second")
	assert.Contains(t, prompt, "Question: fifth")
}

func TestRun_Cancellation(t *testing.T) {
	t.Run("During search", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		searcher := &fakeSearcher{err: errors.New("aborted"), cancel: cancel}
		_, err := newTestPipeline(searcher).Run(ctx, "q", nil, search.Options{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("During synthesis", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		synth := &fakeSynthesizer{err: errors.New("aborted"), cancel: cancel}
		_, err := newTestPipeline(&fakeSearcher{results: svbCandidates()}, WithSynthesizer(synth)).Run(ctx, "q", nil, search.Options{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSearch(t *testing.T) {
	results := make([]models.SearchCandidate, 15)
	for i := range results {
		results[i] = models.SearchCandidate{Title: "t", URL: "https://example.com/" + string(rune('a'+i))}
	}
	p := newTestPipeline(&fakeSearcher{results: results})

	r, err := p.Search(context.Background(), "q", 0, search.Options{})
	require.NoError(t, err)
	assert.Len(t, r.Results, 10)
	assert.False(t, r.Reranked)
	assert.ErrorIs(t, r.RerankError, rerank.ErrNotConfigured)

	r, err = p.Search(context.Background(), "q", 3, search.Options{})
	require.NoError(t, err)
	assert.Len(t, r.Results, 3)
}

func TestAnswer(t *testing.T) {
	t.Run("Cites the top results", func(t *testing.T) {
		synth := &fakeSynthesizer{text: "SVB was a bank."}
		p := newTestPipeline(&fakeSearcher{results: svbCandidates()}, WithSynthesizer(synth), WithSettings(Settings{
			CandidateCount: 20, ResultLimit: 10, CitationLimit: 2, ContextTurns: 3, MaxQueryLength: 500,
		}))

		resp, err := p.Answer(context.Background(), " What is SVB? ", search.Options{})
		require.NoError(t, err)
		assert.Equal(t, "What is SVB?", resp.Query)
		assert.Equal(t, "fake-model", resp.Model)
		assert.Len(t, resp.Citations, 2)
		assert.Contains(t, synth.prompts[0].User, "Question: What is SVB?")
		assert.Equal(t, answerInstruction, synth.prompts[0].System)
	})

	t.Run("No results", func(t *testing.T) {
		p := newTestPipeline(&fakeSearcher{}, WithSynthesizer(&fakeSynthesizer{text: "x"}))
		_, err := p.Answer(context.Background(), "q", search.Options{})
		assert.ErrorIs(t, err, models.ErrNoResults)
	})

	t.Run("Synthesis unavailable", func(t *testing.T) {
		p := newTestPipeline(&fakeSearcher{results: svbCandidates()})
		_, err := p.Answer(context.Background(), "q", search.Options{})
		var synthErr *SynthesisError
		require.True(t, errors.As(err, &synthErr))
		assert.ErrorIs(t, err, ErrSynthesisUnavailable)
	})

	t.Run("Search failure", func(t *testing.T) {
		p := newTestPipeline(&fakeSearcher{err: errors.New("down")}, WithSynthesizer(&fakeSynthesizer{text: "x"}))
		_, err := p.Answer(context.Background(), "q", search.Options{})
		var searchErr *SearchError
		assert.True(t, errors.As(err, &searchErr))
	})
}

func TestBuildContextQuery(t *testing.T) {
	assert.Equal(t, "now", BuildContextQuery("now", nil, 3))
	assert.Equal(t, "b c d now", BuildContextQuery("now", []string{"a", "b", "c", "d"}, 3))
	assert.Equal(t, "now", BuildContextQuery("now", []string{"a"}, 0))
	assert.Equal(t, "a now", BuildContextQuery(" now ", []string{" ", "a"}, 3))
}
