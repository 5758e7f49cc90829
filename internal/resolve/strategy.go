package resolve

import (
	"context"
	"net/url"

	"github.com/matsen/linkharvest/internal/page"
	"github.com/matsen/linkharvest/internal/record"
)

// Candidate is one strategy's proposal.
type Candidate struct {
	Title string
	DOI   string

	// Confirmed marks a title that came from a DOI lookup.
	Confirmed bool
}

// Strategy is one stage of the cascade.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, a *Attempt) (Candidate, bool)
}

// Rerunnable strategies take part in the forced second pass.
type Rerunnable interface {
	Rerun() bool
}

// Attempt carries the state of resolving one URL across strategies.
type Attempt struct {
	URL         string // canonical input URL
	Parsed      *url.URL
	ContentType string // media type from the HEAD/GET check, may be ""

	// Forced is set during the second pass.
	Forced bool

	// Page is the parsed HTML, nil until fetched or when fetching failed.
	Page    *Page
	fetched bool

	// PDF is set once the URL turned out to serve a PDF.
	PDF bool

	// DOI is the first DOI discovered by any stage.
	DOI string

	Kind record.SourceKind

	sawNumeric bool
	confirmed  bool

	looked map[string]Candidate // DOI lookups already made
	memo   map[string]memoResult
}

// Page is a fetched page and the URL it was finally read from.
type Page struct {
	*page.Page
	FetchedURL string
}

type memoResult struct {
	c  Candidate
	ok bool
}

func newAttempt(req Request) *Attempt {
	u, _ := url.Parse(req.URL)
	if u == nil {
		u = &url.URL{}
	}
	return &Attempt{
		URL:         req.URL,
		Parsed:      u,
		ContentType: req.ContentType,
		Kind:        record.KindHTML,
		looked:      make(map[string]Candidate),
		memo:        make(map[string]memoResult),
	}
}

func (a *Attempt) noteDOI(d string) {
	if a.DOI == "" && d != "" {
		a.DOI = d
	}
}

// strategyFunc adapts a function to Strategy.
type strategyFunc struct {
	name  string
	rerun bool
	fn    func(ctx context.Context, a *Attempt) (Candidate, bool)
}

func (s strategyFunc) Name() string { return s.name }
func (s strategyFunc) Rerun() bool  { return s.rerun }

func (s strategyFunc) Attempt(ctx context.Context, a *Attempt) (Candidate, bool) {
	return s.fn(ctx, a)
}

// NewStrategy builds a strategy from a function. rerun says whether it takes
// part in the forced second pass.
func NewStrategy(name string, rerun bool, fn func(ctx context.Context, a *Attempt) (Candidate, bool)) Strategy {
	return strategyFunc{name: name, rerun: rerun, fn: fn}
}
