package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/young1lin/flux/internal/models"
	"github.com/young1lin/flux/internal/pipeline"
	"github.com/young1lin/flux/internal/search"
)

var (
	searchLimit    int
	searchProvider string
)

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	Short:   "Search the web and print reranked results",
	Example: `  flux search "tavily search api"
  flux search --provider firecrawl "bbolt transactions"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng := newEngine(cfg, searchProvider)
		query := strings.Join(args, " ")
		opts := search.Options{
			MaxResults:     searchLimit,
			Depth:          search.DepthFast,
			IncludeFavicon: true,
		}
		return runSearch(ctx, cmd.OutOrStdout(), eng.pipeline, query, searchLimit, opts)
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "number of results (1-20)")
	searchCmd.Flags().StringVar(&searchProvider, "provider", "", "search only this provider (default: configured default with fallback)")
}

func runSearch(ctx context.Context, out io.Writer, p *pipeline.Pipeline, query string, limit int, opts search.Options) error {
	retrieval, err := p.Search(ctx, query, search.ClampResults(limit), opts)
	if err != nil {
		return err
	}
	printResults(out, retrieval)
	return nil
}

// printResults lists results in final order. Reranked results show
// their original position and relevance score.
func printResults(out io.Writer, r *pipeline.Retrieval) {
	if len(r.Results) == 0 {
		fmt.Fprintln(out, "No results.")
		return
	}

	if r.Reranked {
		fmt.Fprintf(out, "Query: %s (reranked with Cohere)\n\n", r.Query)
	} else {
		fmt.Fprintf(out, "Query: %s\n\n", r.Query)
	}

	for _, res := range r.Results {
		fmt.Fprintf(out, "%d. %s%s\n", res.Rank, rerankPrefix(r.Reranked, res), res.Candidate.Title)
		fmt.Fprintf(out, "   %s\n", res.Candidate.URL)
		fmt.Fprintf(out, "   %s\n\n", res.Candidate.Content)
	}
}

func rerankPrefix(reranked bool, res models.RankedResult) string {
	if !reranked {
		return ""
	}
	score := "?"
	if res.RerankScore != nil {
		score = fmt.Sprintf("%.3f", *res.RerankScore)
	}
	return fmt.Sprintf("[orig #%d, score %s] ", res.OriginalRank, score)
}
