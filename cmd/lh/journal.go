package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/linkharvest/internal/storage"
)

var (
	journalRun    string
	journalKey    string
	journalAction string
)

var journalCmd = &cobra.Command{
	Use:   "journal [file]",
	Short: "Inspect a run journal",
	Long: `Read the JSONL journal written by lh run --journal (default: the journal
config key) and report what happened to each record.

With --key, print the latest entry for that dedupe key, which tells whether
a work was written, skipped as a duplicate or failed.

Examples:
  lh journal runs.jsonl --human
  lh journal --action failed
  lh journal --key doi:10.1038/s41586-020-2649-2`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJournal,
}

func init() {
	journalCmd.Flags().StringVar(&journalRun, "run", "", "Only entries from this run ID")
	journalCmd.Flags().StringVar(&journalKey, "key", "", "Show the latest entry for a dedupe key")
	journalCmd.Flags().StringVar(&journalAction, "action", "", "Only entries with this action (created, updated, duplicate, dry-run, failed)")
	rootCmd.AddCommand(journalCmd)
}

// JournalResult is the journal command output.
type JournalResult struct {
	Counts  map[string]int         `json:"counts"`
	Entries []storage.JournalEntry `json:"entries"`
}

func runJournal(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		path = mustLoadConfig().Journal
	}
	if path == "" {
		exitWithError(ExitConfigError, "no journal file: pass one or set journal in the config")
	}

	entries, err := storage.ReadJournal(path)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	entries = filterJournal(entries, journalRun, journalAction)

	if journalKey != "" {
		i, ok := storage.FindByKey(entries, journalKey)
		if !ok {
			exitWithError(ExitDataError, "no journal entry for key %s", journalKey)
		}
		e := entries[i]
		if humanOutput {
			printJournalEntryHuman(e)
			return nil
		}
		return outputJSON(e)
	}

	if humanOutput {
		for _, e := range entries {
			printJournalEntryHuman(e)
		}
		outputHuman("%d entries\n", len(entries))
		return nil
	}
	return outputJSON(JournalResult{Counts: countActions(entries), Entries: entries})
}

// filterJournal keeps entries matching runID and action; empty matches all.
func filterJournal(entries []storage.JournalEntry, runID, action string) []storage.JournalEntry {
	out := make([]storage.JournalEntry, 0, len(entries))
	for _, e := range entries {
		if runID != "" && e.RunID != runID {
			continue
		}
		if action != "" && e.Action != action {
			continue
		}
		out = append(out, e)
	}
	return out
}

func countActions(entries []storage.JournalEntry) map[string]int {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.Action]++
	}
	return counts
}

func printJournalEntryHuman(e storage.JournalEntry) {
	outputHuman("%-9s %s\n", e.Action, truncateString(e.Record.Title, ListTitleMaxLen))
	outputHuman("          %s  [%s]\n", e.Record.URL, e.Key)
	if e.Error != "" {
		outputHuman("          error: %s\n", e.Error)
	}
}
