// Package record defines the resolved-link types shared by the resolver,
// the dedupe engine and the stores.
package record

import (
	"time"

	"github.com/matsen/linkharvest/internal/heuristics"
)

// SourceKind says what a record was resolved from.
type SourceKind string

const (
	KindHTML    SourceKind = "html"
	KindChatPDF SourceKind = "pdf-chat" // PDF uploaded to the chat
	KindPDFLink SourceKind = "pdf-link" // URL serving PDF bytes
)

// Sources for titles made up when nothing identified the work.
const (
	SourceInferred    = "url-inference"
	SourcePlaceholder = "placeholder"
	SourceFileName    = "file-name"
)

// ResolvedRecord is the outcome of resolving one input. It is never merged
// with another record.
type ResolvedRecord struct {
	URL    string     `json:"url"`
	Title  string     `json:"title"`
	DOI    string     `json:"doi,omitempty"`
	Kind   SourceKind `json:"kind"`
	Source string     `json:"source"` // strategy that produced the title
}

// Fallback reports whether Title was invented from the URL, the file name or
// a placeholder. Such titles do not identify the work.
func (r ResolvedRecord) Fallback() bool {
	switch r.Source {
	case SourceInferred, SourcePlaceholder, SourceFileName:
		return true
	}
	return false
}

// MaxEntryTitle is the title cap for destination entries.
const MaxEntryTitle = 2000

// Entry is the shape written to a destination store.
type Entry struct {
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	SharedBy string    `json:"shared_by"`
	SharedAt time.Time `json:"shared_at"`
}

// NewEntry builds the destination entry for rec.
func NewEntry(rec ResolvedRecord, sharedBy string, sharedAt time.Time) Entry {
	return Entry{
		Title:    heuristics.Truncate(rec.Title, MaxEntryTitle),
		URL:      rec.URL,
		SharedBy: sharedBy,
		SharedAt: sharedAt,
	}
}

// SharedAtISO returns SharedAt in ISO-8601 (RFC 3339) UTC.
func (e Entry) SharedAtISO() string {
	return e.SharedAt.UTC().Format(time.RFC3339)
}
