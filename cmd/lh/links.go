package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/linkharvest/internal/storage"
)

var (
	linksQuery string
	linksLimit int
	linksID    string
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "List or search links in the SQLite store",
	Long: `List harvested links from the local SQLite store, newest first, or
full-text search their titles, or show one link by id.

Examples:
  lh links --limit 20
  lh links --id 3f2a9c1e-8b7d-4e55-9a61-0c2d7f4b1e90
  lh links --query "protein folding" --human`,
	Args: cobra.NoArgs,
	RunE: runLinks,
}

func init() {
	linksCmd.Flags().StringVarP(&linksQuery, "query", "q", "", "Full-text search over titles")
	linksCmd.Flags().IntVarP(&linksLimit, "limit", "n", 50, "Maximum results (0 for all)")
	linksCmd.Flags().StringVar(&linksID, "id", "", "Show a single link by id")
	rootCmd.AddCommand(linksCmd)
}

// LinkResult is one stored link.
type LinkResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	SharedBy string `json:"shared_by,omitempty"`
	SharedAt string `json:"shared_at"`
}

// LinksResult is the links command output.
type LinksResult struct {
	Total int          `json:"total"`
	Links []LinkResult `json:"links"`
}

func runLinks(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	loc, err := cfg.Location()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	db, err := storage.OpenDB(cfg.SQLitePath)
	if err != nil {
		exitWithError(ExitDataError, "opening %s: %v", cfg.SQLitePath, err)
	}
	defer db.Close()

	ctx := context.Background()
	if linksID != "" {
		l, err := db.GetByID(ctx, linksID)
		if err != nil {
			exitWithError(ExitError, "getting link: %v", err)
		}
		if l == nil {
			exitWithError(ExitDataError, "link not found: %s", linksID)
		}
		if humanOutput {
			printLinkHuman(*l, loc)
			return nil
		}
		return outputJSON(linkResult(*l))
	}

	var links []storage.Link
	if linksQuery != "" {
		links, err = db.Search(ctx, linksQuery, linksLimit)
	} else {
		links, err = db.ListAll(ctx, linksLimit)
	}
	if err != nil {
		exitWithError(ExitError, "listing links: %v", err)
	}
	total, err := db.Count(ctx)
	if err != nil {
		exitWithError(ExitError, "counting links: %v", err)
	}

	if humanOutput {
		if len(links) == 0 {
			outputHuman("No links\n")
			return nil
		}
		for _, l := range links {
			printLinkHuman(l, loc)
		}
		outputHuman("%d of %d links\n", len(links), total)
		return nil
	}

	out := LinksResult{Total: total, Links: make([]LinkResult, 0, len(links))}
	for _, l := range links {
		out.Links = append(out.Links, linkResult(l))
	}
	return outputJSON(out)
}

func linkResult(l storage.Link) LinkResult {
	return LinkResult{
		ID:       l.ID,
		Title:    l.Title,
		URL:      l.URL,
		SharedBy: l.SharedBy,
		SharedAt: l.SharedAt.UTC().Format(time.RFC3339),
	}
}

func printLinkHuman(l storage.Link, loc *time.Location) {
	outputHuman("%s  %s\n", formatSharedAt(l.SharedAt, loc), truncateString(l.Title, ListTitleMaxLen))
	outputHuman("    %s", l.URL)
	if l.SharedBy != "" {
		outputHuman("  (%s)", l.SharedBy)
	}
	outputHuman("\n")
}
