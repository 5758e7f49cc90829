package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/matsen/linkharvest/internal/config"
	"github.com/matsen/linkharvest/internal/harvest"
	"github.com/matsen/linkharvest/internal/identity"
	"github.com/matsen/linkharvest/internal/slack"
)

var (
	runChannel string
	runOldest  string
	runStore   string
	runDryRun  bool
	runJournal string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Harvest links from the configured Slack channel",
	Long: `Read the channel history oldest-first, resolve every scholarly link and
uploaded PDF, and upsert one entry per article into the destination store.

Flags override the config file for this run only.

Examples:
  lh run
  lh run --oldest 2024-01-01 --dry-run
  lh run --store sqlite --journal runs.jsonl`,
	Args: cobra.NoArgs,
	RunE: runHarvest,
}

func init() {
	runCmd.Flags().StringVar(&runChannel, "channel", "", "Slack channel ID (overrides slack_channel_id)")
	runCmd.Flags().StringVar(&runOldest, "oldest", "", "Only read messages after this time")
	runCmd.Flags().StringVar(&runStore, "store", "", "Destination store: notion, sqlite or mongo")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Resolve and log but write nothing")
	runCmd.Flags().StringVar(&runJournal, "journal", "", "Append one JSON line per record to this file")
	rootCmd.AddCommand(runCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	applyRunFlags(cfg)
	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	dryRun := cfg.DryRun
	if err := cfg.ValidateRun(dryRun); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	oldest, err := cfg.OldestTime()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := newPipeline(cfg)

	chat, err := slack.NewClient(cfg.SlackBotToken, p.http, slack.WithLogger(p.log))
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	team, bot, err := chat.AuthTest(ctx)
	if err != nil {
		exitWithError(ExitConfigError, "slack auth: %v", err)
	}
	p.log.Info().Str("team", team).Str("bot", bot).Msg("slack connected")

	var store identity.Store
	if !dryRun {
		s, closeStore, err := openStore(ctx, cfg, p)
		if err != nil {
			exitWithError(ExitConfigError, "opening %s store: %v", cfg.Store, err)
		}
		defer closeStore()
		store = s
	}

	runner := harvest.New(chat, p.resolver, store,
		harvest.WithInspector(p.http),
		harvest.WithJournal(cfg.Journal),
		harvest.WithLogger(p.log),
	)
	stats, err := runner.Run(ctx, harvest.Options{
		Channel: cfg.SlackChannelID,
		Oldest:  oldest,
		DryRun:  dryRun,
	})
	if err != nil {
		exitWithError(ExitError, "harvest: %v", err)
	}

	if humanOutput {
		printStatsHuman(stats)
		return nil
	}
	return outputJSON(stats)
}

// applyRunFlags layers the run flags over the loaded config.
func applyRunFlags(cfg *config.Config) {
	if runChannel != "" {
		cfg.SlackChannelID = runChannel
	}
	if runOldest != "" {
		cfg.Oldest = runOldest
	}
	if runStore != "" {
		cfg.Store = runStore
	}
	if runDryRun {
		cfg.DryRun = true
	}
	if runJournal != "" {
		cfg.Journal = config.ExpandPath(runJournal)
	}
}
