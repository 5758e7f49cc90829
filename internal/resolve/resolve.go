// Package resolve turns a canonical URL into a titled record by running an
// ordered cascade of strategies: PDF extraction, DOI lookups, page metadata,
// publisher rules and bibliographic search, with URL inference as the floor.
package resolve

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/matsen/linkharvest/internal/biblio"
	"github.com/matsen/linkharvest/internal/heuristics"
	"github.com/matsen/linkharvest/internal/httpclient"
	"github.com/matsen/linkharvest/internal/publisher"
	"github.com/matsen/linkharvest/internal/record"
)

// Source names for titles that did not come from a strategy.
const (
	SourceInferred    = record.SourceInferred
	SourcePlaceholder = record.SourcePlaceholder
	SourceFileName    = record.SourceFileName
)

// Fetcher is the network layer the cascade uses.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*httpclient.Response, error)
	GetPage(ctx context.Context, rawURL string) (*httpclient.Response, error)
}

// Biblio is the bibliographic client the cascade and publisher rules use.
type Biblio interface {
	publisher.Biblio
	Search(ctx context.Context, query, preferHost string) (*biblio.Work, error)
}

// PDFExtractor derives a title and DOI from PDF bytes.
type PDFExtractor interface {
	Extract(ctx context.Context, data []byte) (title, doi string)
}

// Request is one URL to resolve.
type Request struct {
	URL         string // canonical URL
	ContentType string // media type from a HEAD/GET check, if one was made
}

// Resolver runs the cascade.
type Resolver struct {
	fetch      Fetcher
	bib        Biblio
	pdf        PDFExtractor
	rules      *publisher.Registry
	h          *heuristics.Set
	policy     Policy
	log        zerolog.Logger
	strategies []Strategy
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRegistry sets the publisher rules.
func WithRegistry(r *publisher.Registry) Option {
	return func(rv *Resolver) {
		rv.rules = r
	}
}

// WithHeuristics sets the predicate set.
func WithHeuristics(h *heuristics.Set) Option {
	return func(rv *Resolver) {
		if h != nil {
			rv.h = h
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(rv *Resolver) {
		rv.log = log
	}
}

// WithStrategies replaces the strategy list.
func WithStrategies(s ...Strategy) Option {
	return func(rv *Resolver) {
		rv.strategies = s
	}
}

// New creates a Resolver with the default strategy list.
func New(fetch Fetcher, bib Biblio, pdf PDFExtractor, opts ...Option) *Resolver {
	r := &Resolver{
		fetch: fetch,
		bib:   bib,
		pdf:   pdf,
		rules: publisher.Default(),
		h:     heuristics.Default(),
		log:   zerolog.Nop(),
	}
	r.strategies = r.DefaultStrategies()

	for _, opt := range opts {
		opt(r)
	}
	r.policy = NewPolicy(r.h)

	return r
}

// Resolve never fails: it always returns a record with a usable title.
func (r *Resolver) Resolve(ctx context.Context, req Request) record.ResolvedRecord {
	a := newAttempt(req)
	log := r.log.With().Str("url", req.URL).Logger()

	c, source, ok := r.pass(ctx, a, false)
	if !ok && r.policy.NeedsRetry(a.sawNumeric, a.confirmed) {
		log.Debug().Msg("only numeric-looking titles; forced pass")
		c, source, ok = r.pass(ctx, a, true)
	}

	rec := record.ResolvedRecord{URL: req.URL, Kind: a.Kind}
	if ok {
		rec.Title = heuristics.CleanTitle(c.Title)
		rec.DOI = c.DOI
		rec.Source = source
	} else {
		rec.Title = InferTitle(a.Parsed)
		rec.Source = SourceInferred
	}

	if rec.DOI == "" {
		rec.DOI = a.DOI
	}
	if rec.DOI == "" && a.Page != nil {
		rec.DOI = a.Page.DeclaredDOI()
	}

	if title, replaced := r.policy.Gate(rec.Title, Host(a.Parsed)); replaced {
		rec.Title = title
		rec.Source = SourcePlaceholder
	}

	log.Debug().Str("title", rec.Title).Str("doi", rec.DOI).Str("source", rec.Source).Msg("resolved")
	return rec
}

// pass runs the strategies once. Results of the first pass are memoized, so
// the forced pass makes no new requests.
func (r *Resolver) pass(ctx context.Context, a *Attempt, forced bool) (Candidate, string, bool) {
	a.Forced = forced
	for _, s := range r.strategies {
		if ctx.Err() != nil {
			return Candidate{}, "", false
		}
		if forced {
			if rr, ok := s.(Rerunnable); !ok || !rr.Rerun() {
				continue
			}
		}

		m, done := a.memo[s.Name()]
		if !done {
			c, ok := s.Attempt(ctx, a)
			c.Title = heuristics.CleanTitle(c.Title)
			m = memoResult{c: c, ok: ok}
			a.memo[s.Name()] = m
		}
		if !m.ok {
			continue
		}

		accept, numeric := r.policy.Accept(m.c, forced)
		if m.c.Confirmed && m.c.Title != "" {
			a.confirmed = true
		}
		if numeric {
			a.sawNumeric = true
			r.log.Debug().Str("url", a.URL).Str("strategy", s.Name()).Str("title", m.c.Title).Msg("numeric-looking candidate")
		}
		if accept {
			return m.c, s.Name(), true
		}
	}
	return Candidate{}, "", false
}

// ResolveChatPDF resolves a PDF uploaded to the chat. The record URL is the
// message permalink; fileTitle and fileName are fallbacks when the PDF
// yields no usable title.
func (r *Resolver) ResolveChatPDF(ctx context.Context, data []byte, permalink, fileTitle, fileName string) record.ResolvedRecord {
	rec := record.ResolvedRecord{URL: permalink, Kind: record.KindChatPDF, Source: "pdf"}

	var title string
	if r.pdf != nil && len(data) > 0 {
		title, rec.DOI = r.pdf.Extract(ctx, data)
	}
	title = heuristics.CleanTitle(title)
	if title == "" || r.h.LooksNumeric(title) {
		title, rec.Source = fileFallback(fileTitle, fileName), SourceFileName
	}
	rec.Title = title

	host := "chat upload"
	if u, err := url.Parse(permalink); err == nil && Host(u) != "" {
		host = Host(u)
	}
	if t, replaced := r.policy.Gate(rec.Title, host); replaced {
		rec.Title, rec.Source = t, SourcePlaceholder
	}
	return rec
}

// fileFallback is the chat file's title, else its name, without a .pdf
// extension.
func fileFallback(fileTitle, fileName string) string {
	for _, s := range []string{fileTitle, fileName} {
		s = strings.TrimSpace(s)
		if len(s) > 4 && strings.EqualFold(s[len(s)-4:], ".pdf") {
			s = s[:len(s)-4]
		}
		if s = heuristics.CleanTitle(strings.NewReplacer("_", " ").Replace(s)); s != "" {
			return s
		}
	}
	return ""
}
