package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var pdfCmd = &cobra.Command{
	Use:   "pdf <file>...",
	Short: "Extract titles from local PDF files",
	Long: `Run the PDF title extractor on local files: embedded DOI first, then the
document metadata title, then the first-page layout heuristics.

Examples:
  lh pdf paper.pdf
  lh pdf --human ~/Downloads/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPDF,
}

func init() {
	rootCmd.AddCommand(pdfCmd)
}

// PDFResult is the extraction outcome for one file.
type PDFResult struct {
	File  string `json:"file"`
	Title string `json:"title"`
	DOI   string `json:"doi,omitempty"`
}

func runPDF(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	p := newPipeline(cfg)
	ctx := context.Background()

	results := make([]PDFResult, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			exitWithError(ExitDataError, "reading %s: %v", path, err)
		}
		title, doi := p.pdf.Extract(ctx, data)
		if title == "" {
			title = fileStem(path)
		}
		results = append(results, PDFResult{File: path, Title: title, DOI: doi})
	}

	if humanOutput {
		for _, r := range results {
			outputHuman("%s\n  %s\n", r.File, truncateString(r.Title, ResolveTitleMaxLen))
			if r.DOI != "" {
				outputHuman("  DOI: %s\n", r.DOI)
			}
		}
		return nil
	}
	return outputJSON(results)
}

// fileStem is the base name without its extension.
func fileStem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
