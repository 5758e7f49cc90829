package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/matsen/linkharvest/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Long: `Write the default configuration, with a comment on each setting, to
--config or $XDG_CONFIG_HOME/linkharvest/config.yml.

Examples:
  lh config init
  lh config init --force --config ./lh.yml`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.Path()
	}
	if err := config.WriteTemplate(path, configInitForce); err != nil {
		if errors.Is(err, config.ErrExists) {
			exitWithError(ExitConfigError, "%v (use --force to overwrite)", err)
		}
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		outputHuman("Wrote %s\n", path)
		return nil
	}
	return outputJSON(StatusResponse{Status: "created", Path: path})
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	r := cfg.Redacted()

	if humanOutput {
		outputHuman("store:     %s\n", r.Store)
		outputHuman("channel:   %s\n", r.SlackChannelID)
		outputHuman("slack:     %s\n", r.SlackBotToken)
		switch r.Store {
		case config.StoreSQLite:
			outputHuman("sqlite:    %s\n", r.SQLitePath)
		case config.StoreMongo:
			outputHuman("mongo:     %s (%s.%s)\n", r.MongoURI, r.MongoDatabase, r.MongoCollection)
		default:
			outputHuman("notion:    %s db=%s\n", r.NotionToken, r.NotionDatabaseID)
		}
		outputHuman("timeout:   %s, retries %d\n", r.Timeout, r.MaxRetries)
		outputHuman("timezone:  %s\n", r.Timezone)
		return nil
	}
	return outputJSON(r)
}
