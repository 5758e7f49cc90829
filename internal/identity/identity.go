// Package identity decides when two resolved records are the same work:
// dedupe keys, the per-run seen set and the store upsert.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/matsen/linkharvest/internal/doi"
	"github.com/matsen/linkharvest/internal/heuristics"
	"github.com/matsen/linkharvest/internal/record"
)

// Key identifies a work within and across runs.
type Key string

// KeyFor returns doi:<doi> when the record has a DOI. Otherwise it is
// title:<normalized title>, or url:<canonical URL> when the title is a
// fallback shared by unrelated works.
func KeyFor(rec record.ResolvedRecord) Key {
	if d := doi.Normalize(rec.DOI); d != "" {
		return Key("doi:" + d)
	}
	if rec.Fallback() || strings.TrimSpace(rec.Title) == "" {
		return Key("url:" + rec.URL)
	}
	return Key("title:" + NormalizeTitle(rec.Title))
}

// NormalizeTitle applies NFKC, lowercases and collapses whitespace.
func NormalizeTitle(title string) string {
	return heuristics.CollapseSpace(strings.ToLower(norm.NFKC.String(title)))
}

// Seen is the per-run set of emitted keys. It is not safe for concurrent
// use; runs are sequential.
type Seen map[Key]struct{}

// NewSeen returns an empty set.
func NewSeen() Seen {
	return make(Seen)
}

// Has reports whether key was already handled in this run.
func (s Seen) Has(key Key) bool {
	_, ok := s[key]
	return ok
}

// Add records key. Callers add a key once its record is written, so a
// failed write leaves later records with the same key free to retry.
func (s Seen) Add(key Key) {
	s[key] = struct{}{}
}

// Field names a store attribute that can be queried.
type Field string

const (
	FieldURL   Field = "url"
	FieldTitle Field = "title"
)

// Op is a query comparison.
type Op string

const (
	OpEquals   Op = "equals"
	OpContains Op = "contains"
)

// Filter is a single-condition store query.
type Filter struct {
	Field Field
	Op    Op
	Value string
}

// ErrNotFound is returned by Store.Find when nothing matches.
var ErrNotFound = errors.New("no matching entry")

// Store is a destination that can be queried and written.
type Store interface {
	// Find returns the ref of the first entry matching f, or ErrNotFound.
	Find(ctx context.Context, f Filter) (string, error)
	Create(ctx context.Context, e record.Entry) (string, error)
	Update(ctx context.Context, ref string, e record.Entry) error
}

// Lookups returns the queries tried, in order, to find an existing entry
// for rec: exact URL, URL containing the DOI, exact title. Fallback titles
// are never matched.
func Lookups(rec record.ResolvedRecord, e record.Entry) []Filter {
	filters := []Filter{{Field: FieldURL, Op: OpEquals, Value: e.URL}}
	if d := doi.Normalize(rec.DOI); d != "" {
		filters = append(filters, Filter{Field: FieldURL, Op: OpContains, Value: d})
	}
	if e.Title != "" && !rec.Fallback() {
		filters = append(filters, Filter{Field: FieldTitle, Op: OpEquals, Value: e.Title})
	}
	return filters
}

// Upsert updates the first existing entry matching rec, or creates one.
func Upsert(ctx context.Context, s Store, rec record.ResolvedRecord, e record.Entry) (ref string, created bool, err error) {
	for _, f := range Lookups(rec, e) {
		ref, err := s.Find(ctx, f)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("querying %s %s: %w", f.Field, f.Op, err)
		}
		if err := s.Update(ctx, ref, e); err != nil {
			return "", false, fmt.Errorf("updating %s: %w", ref, err)
		}
		return ref, false, nil
	}

	ref, err = s.Create(ctx, e)
	if err != nil {
		return "", false, fmt.Errorf("creating entry: %w", err)
	}
	return ref, true, nil
}
