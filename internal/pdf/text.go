package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextPages is how many leading pages are read for DOIs and titles.
const TextPages = 5

// ErrNoText is returned when a document parses but yields no page text.
var ErrNoText = errors.New("no text in PDF")

// Document is the text the extractor works from.
type Document struct {
	MetaTitle string
	Pages     []string // plain text of the first TextPages pages
}

// ReadDocument parses PDF bytes and returns the Info title and the text of
// the first pages. The parser panics on some malformed input; that is
// reported as an error.
func ReadDocument(data []byte) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("parsing PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing PDF: %w", err)
	}

	doc = &Document{MetaTitle: strings.TrimSpace(r.Trailer().Key("Info").Key("Title").Text())}

	maxPages := TextPages
	if r.NumPage() < maxPages {
		maxPages = r.NumPage()
	}

	hasText := false
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, "")
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			doc.Pages = append(doc.Pages, "")
			continue
		}
		if strings.TrimSpace(text) != "" {
			hasText = true
		}
		doc.Pages = append(doc.Pages, text)
	}

	if !hasText && doc.MetaTitle == "" {
		return nil, ErrNoText
	}
	return doc, nil
}
