// Package publisher holds per-publisher resolution rules: which meta tags a
// site fills reliably and how to turn its article URLs into a bibliographic
// lookup.
package publisher

import (
	"context"
	"net/url"
	"strings"

	"github.com/matsen/linkharvest/internal/biblio"
)

// Biblio is the subset of the bibliographic client the rules call.
type Biblio interface {
	LookupDOI(ctx context.Context, doi string) (*biblio.Work, error)
	ArXiv(ctx context.Context, id string) (*biblio.Work, error)
	SearchStructured(ctx context.Context, q biblio.StructuredQuery) (*biblio.Work, error)
	ByAlternativeID(ctx context.Context, id string) (*biblio.Work, error)
	OpenAlexExternal(ctx context.Context, id string) (*biblio.Work, error)
	ADS(ctx context.Context, bibstem, volume, page string) (*biblio.Work, error)
}

// DeriveFunc builds a bibliographic lookup from an article URL. It returns
// (nil, nil) when the URL carries nothing it can use.
type DeriveFunc func(ctx context.Context, bib Biblio, u *url.URL) (*biblio.Work, error)

// Rule describes one publisher.
type Rule struct {
	Name string

	// Hosts are domain suffixes; "nature.com" also matches "www.nature.com".
	Hosts []string

	// Meta lists the meta names this publisher fills with the article title,
	// most trusted first.
	Meta []string

	Derive DeriveFunc
}

// Registry maps hosts to rules.
type Registry struct {
	rules []Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Default returns a registry with every built-in rule registered.
func Default() *Registry {
	r := NewRegistry()
	for _, rule := range builtin() {
		r.Register(rule)
	}
	return r
}

// Register adds a rule. A later rule with the same name replaces the
// earlier one.
func (r *Registry) Register(rule Rule) {
	for i := range r.rules {
		if r.rules[i].Name == rule.Name {
			r.rules[i] = rule
			return
		}
	}
	r.rules = append(r.rules, rule)
}

// Lookup returns the rule whose host suffix matches host most specifically,
// or nil.
func (r *Registry) Lookup(host string) *Rule {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	var best *Rule
	bestLen := 0
	for i := range r.rules {
		for _, h := range r.rules[i].Hosts {
			if (host == h || strings.HasSuffix(host, "."+h)) && len(h) > bestLen {
				best = &r.rules[i]
				bestLen = len(h)
			}
		}
	}
	return best
}

// Names returns the registered rule names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name
	}
	return names
}
