// Package main provides the lh CLI entry point.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/matsen/linkharvest/internal/biblio"
	"github.com/matsen/linkharvest/internal/config"
	"github.com/matsen/linkharvest/internal/heuristics"
	"github.com/matsen/linkharvest/internal/httpclient"
	"github.com/matsen/linkharvest/internal/pdf"
	"github.com/matsen/linkharvest/internal/resolve"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	configPath  string
	verbose     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lh",
	Short: "Harvest scholarly links shared in Slack",
	Long: `lh reads a Slack channel, keeps the links that point at scholarly
articles, resolves each one to a clean title (and DOI when there is one),
dedupes them and upserts them into Notion, SQLite or MongoDB.

The resolver is also available on its own:
  lh resolve <url>...   resolve URLs to titles
  lh pdf <file>...      extract titles from local PDFs
  lh canon <url>...     show canonical forms and the scholarly filter verdict

All commands output JSON by default; use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := config.LoadDotEnv(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/linkharvest/config.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug detail to stderr")
	rootCmd.Version = Version
}

// mustLoadConfig loads and validates configuration, exits on error.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return cfg
}

// newLogger builds the stderr logger: console output with --human, JSON
// lines otherwise.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	var log zerolog.Logger
	if humanOutput {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}

func newHTTPClient(cfg *config.Config, log zerolog.Logger) *httpclient.Client {
	return httpclient.New(
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithRetries(cfg.MaxRetries),
		httpclient.WithUserAgent(cfg.UserAgent),
		httpclient.WithRobots(cfg.RespectRobots),
		httpclient.WithLogger(log),
	)
}

// mustHeuristics returns the configured predicate set, exits on error.
func mustHeuristics(cfg *config.Config) *heuristics.Set {
	if cfg.HeuristicsFile == "" {
		return heuristics.Default()
	}
	h, err := heuristics.Load(cfg.HeuristicsFile)
	if err != nil {
		exitWithError(ExitConfigError, "loading heuristics: %v", err)
	}
	return h
}

// pipeline is the shared resolution stack.
type pipeline struct {
	log      zerolog.Logger
	http     *httpclient.Client
	biblio   *biblio.Client
	pdf      *pdf.Extractor
	resolver *resolve.Resolver
}

func newPipeline(cfg *config.Config) *pipeline {
	log := newLogger(cfg)
	h := mustHeuristics(cfg)
	hc := newHTTPClient(cfg, log)
	bib := biblio.NewClient(hc,
		biblio.WithMailto(cfg.CrossrefMailto),
		biblio.WithADSToken(cfg.ADSToken),
		biblio.WithLogger(log),
	)
	ex := pdf.NewExtractor(h, bib, log)
	return &pipeline{
		log:    log,
		http:   hc,
		biblio: bib,
		pdf:    ex,
		resolver: resolve.New(hc, bib, ex,
			resolve.WithHeuristics(h),
			resolve.WithLogger(log),
		),
	}
}
