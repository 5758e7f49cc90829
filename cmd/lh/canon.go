package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/linkharvest/internal/canon"
)

var canonCmd = &cobra.Command{
	Use:   "canon <url>...",
	Short: "Show canonical URLs and the scholarly filter verdict",
	Long: `Canonicalize each URL the way the harvester does and report whether the
scholarly filter would keep it. No network access.

Examples:
  lh canon '<https://Example.org/a?utm_source=x|label>'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCanon,
}

func init() {
	rootCmd.AddCommand(canonCmd)
}

// CanonResult is the canonical form of one input.
type CanonResult struct {
	Input     string `json:"input"`
	Canonical string `json:"canonical,omitempty"`
	Valid     bool   `json:"valid"`
	Scholarly bool   `json:"scholarly"`
}

func runCanon(cmd *cobra.Command, args []string) error {
	results := canonResults(canon.DefaultFilter(), args)
	if humanOutput {
		for _, r := range results {
			switch {
			case !r.Valid:
				outputHuman("%s\n  (not a URL)\n", r.Input)
			case r.Scholarly:
				outputHuman("%s\n  keep  %s\n", r.Input, r.Canonical)
			default:
				outputHuman("%s\n  drop  %s\n", r.Input, r.Canonical)
			}
		}
		return nil
	}
	return outputJSON(results)
}

func canonResults(f *canon.Filter, inputs []string) []CanonResult {
	results := make([]CanonResult, 0, len(inputs))
	for _, in := range inputs {
		r := CanonResult{Input: in}
		if u, ok := canon.Canonicalize(in); ok {
			r.Canonical = u
			r.Valid = true
			r.Scholarly = f.IsScholarly(u)
		}
		results = append(results, r)
	}
	return results
}
