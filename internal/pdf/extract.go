// Package pdf derives a title and DOI from PDF bytes: the document's own
// metadata, a DOI lookup, then a scoring heuristic over the first page.
package pdf

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/matsen/linkharvest/internal/doi"
	"github.com/matsen/linkharvest/internal/heuristics"
)

// Metadata titles outside this length range are ignored.
const (
	minMetaTitle = 10
	maxMetaTitle = 220
)

// TitleLookup resolves a DOI to a title.
type TitleLookup interface {
	TitleForDOI(ctx context.Context, doi string) (string, error)
}

// Extractor pulls titles out of PDFs.
type Extractor struct {
	Heuristics *heuristics.Set
	Lookup     TitleLookup // may be nil
	Log        zerolog.Logger
}

// NewExtractor returns an Extractor using h (or the defaults when nil).
func NewExtractor(h *heuristics.Set, lookup TitleLookup, log zerolog.Logger) *Extractor {
	if h == nil {
		h = heuristics.Default()
	}
	return &Extractor{Heuristics: h, Lookup: lookup, Log: log}
}

// Extract returns the best title and any DOI found in the document. Both
// are empty when the bytes are not a readable PDF.
func (e *Extractor) Extract(ctx context.Context, data []byte) (title, foundDOI string) {
	doc, err := ReadDocument(data)
	if err != nil {
		e.Log.Debug().Err(err).Int("bytes", len(data)).Msg("unreadable PDF")
		return "", ""
	}
	return e.ExtractText(ctx, doc.MetaTitle, doc.Pages)
}

// ExtractText runs the title algorithm over already-extracted text.
func (e *Extractor) ExtractText(ctx context.Context, meta string, pages []string) (title, foundDOI string) {
	for _, p := range pages {
		if d := doi.Find(p); d != "" {
			foundDOI = d
			break
		}
	}

	if t := heuristics.CleanTitle(meta); e.acceptMeta(t) {
		return t, foundDOI
	}

	if foundDOI != "" && e.Lookup != nil {
		t, err := e.Lookup.TitleForDOI(ctx, foundDOI)
		if err == nil && strings.TrimSpace(t) != "" {
			return heuristics.CleanTitle(t), foundDOI
		}
		e.Log.Debug().Err(err).Str("doi", foundDOI).Msg("DOI lookup gave no title")
	}

	if len(pages) == 0 {
		return "", foundDOI
	}
	return heuristics.CleanTitle(e.firstPageTitle(pages[0])), foundDOI
}

func (e *Extractor) acceptMeta(t string) bool {
	n := utf8.RuneCountInString(t)
	return n >= minMetaTitle && n <= maxMetaTitle && !e.Heuristics.IsBoilerplateTitle(t)
}
