package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matsen/linkharvest/internal/harvest"
)

// Title widths for human output.
const (
	ResolveTitleMaxLen = 80 // resolve, pdf
	ListTitleMaxLen    = 60 // links
)

// Command output goes to stdout; logs and human-mode errors to stderr.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// outputJSON writes v as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes formatted text.
func outputHuman(format string, args ...any) {
	fmt.Fprintf(stdout, format, args...)
}

// exitWithError reports msg as text on stderr (--human) or as an
// ErrorResponse on stdout, then exits with code.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is the JSON shape of a failed command.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse reports a file-level action such as config init.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// printStatsHuman summarizes a harvest run.
func printStatsHuman(s *harvest.Stats) {
	outputHuman("Run %s: %d messages, %d links (%d filtered), %d PDFs\n",
		s.RunID, s.Messages, s.Links, s.Filtered, s.PDFs)
	outputHuman("  created %d, updated %d, duplicates %d, skipped %d, failed %d\n",
		s.Created, s.Updated, s.Duplicates, s.Skipped, s.Failed)
}

// truncateString cuts s to max runes, ending in "..." when shortened.
func truncateString(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// formatSharedAt renders a share time in loc, UTC when loc is nil.
func formatSharedAt(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02 15:04:05 MST")
}
