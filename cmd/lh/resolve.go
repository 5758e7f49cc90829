package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/matsen/linkharvest/internal/canon"
	"github.com/matsen/linkharvest/internal/record"
	"github.com/matsen/linkharvest/internal/resolve"
)

var resolveNoInspect bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>...",
	Short: "Resolve URLs to article titles",
	Long: `Canonicalize each URL, inspect its content type and run the title cascade.
Nothing is written to a store.

Examples:
  lh resolve https://doi.org/10.1038/nature12373
  lh resolve --human https://arxiv.org/abs/2101.00001`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveNoInspect, "no-inspect", false, "Skip the HEAD/GET content-type check")
	rootCmd.AddCommand(resolveCmd)
}

// ResolveResult is one resolved URL.
type ResolveResult struct {
	Input string `json:"input"`
	record.ResolvedRecord
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	p := newPipeline(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results := make([]ResolveResult, 0, len(args))
	for _, arg := range args {
		u, ok := canon.Canonicalize(arg)
		if !ok {
			exitWithError(ExitError, "not a URL: %s", arg)
		}
		req := resolve.Request{URL: u}
		if !resolveNoInspect {
			if pr, err := p.http.Inspect(ctx, u); err == nil {
				req.ContentType = pr.ContentType
			} else {
				p.log.Debug().Err(err).Str("url", u).Msg("inspect failed")
			}
		}
		results = append(results, ResolveResult{Input: arg, ResolvedRecord: p.resolver.Resolve(ctx, req)})
	}

	if humanOutput {
		for _, r := range results {
			outputHuman("%s\n", truncateString(r.Title, ResolveTitleMaxLen))
			outputHuman("  URL:    %s\n", r.URL)
			if r.DOI != "" {
				outputHuman("  DOI:    %s\n", r.DOI)
			}
			outputHuman("  Source: %s (%s)\n", r.Source, r.Kind)
		}
		return nil
	}
	return outputJSON(results)
}
