package resolve

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/matsen/linkharvest/internal/canon"
	"github.com/matsen/linkharvest/internal/doi"
	"github.com/matsen/linkharvest/internal/httpclient"
	"github.com/matsen/linkharvest/internal/page"
	"github.com/matsen/linkharvest/internal/publisher"
	"github.com/matsen/linkharvest/internal/record"
)

// Strategy names, also used as record sources.
const (
	StrategyPDFLink       = "pdf-link"
	StrategyDOIInURL      = "doi-in-url"
	StrategyFetch         = "fetch"
	StrategyPublisherMeta = "publisher-meta"
	StrategyPublisher     = "publisher"
	StrategyMeta          = "meta"
	StrategyJSONLD        = "json-ld"
	StrategyTitleTag      = "title-tag"
	StrategyH1            = "h1"
	StrategyReadability   = "readability"
	StrategyPageDOI       = "page-doi"
	StrategySearch        = "search"
)

// MetaTitleKeys are the generic title meta names, most scholarly first.
var MetaTitleKeys = []string{
	"citation_title", "dc.title", "dcterms.title", "prism.title", "og:title", "twitter:title",
}

// DefaultStrategies returns the cascade in order. The URL-only stages are
// not repeated in the forced pass.
func (r *Resolver) DefaultStrategies() []Strategy {
	return []Strategy{
		NewStrategy(StrategyPDFLink, false, r.pdfLink),
		NewStrategy(StrategyDOIInURL, false, r.doiInURL),
		NewStrategy(StrategyFetch, true, r.fetchPage),
		NewStrategy(StrategyPublisherMeta, true, r.publisherMeta),
		NewStrategy(StrategyPublisher, true, r.publisherDerive),
		NewStrategy(StrategyMeta, true, pageField(func(p *Page) string { return p.Meta(MetaTitleKeys...) })),
		NewStrategy(StrategyJSONLD, true, pageField(func(p *Page) string { return p.StructuredHeadline() })),
		NewStrategy(StrategyTitleTag, true, pageField(func(p *Page) string { return p.TitleTag() })),
		NewStrategy(StrategyH1, true, pageField(func(p *Page) string { return p.FirstH1() })),
		NewStrategy(StrategyReadability, true, pageField(func(p *Page) string { return p.ReadabilityTitle() })),
		NewStrategy(StrategyPageDOI, true, r.pageDOI),
		NewStrategy(StrategySearch, true, r.search),
	}
}

func (r *Resolver) pdfLink(ctx context.Context, a *Attempt) (Candidate, bool) {
	if r.pdf == nil {
		return Candidate{}, false
	}
	if !strings.HasSuffix(strings.ToLower(a.Parsed.Path), ".pdf") && a.ContentType != "application/pdf" {
		return Candidate{}, false
	}

	resp, err := r.fetch.Get(ctx, a.URL, http.Header{"Accept": {"application/pdf,*/*;q=0.8"}})
	if err != nil {
		r.log.Debug().Err(err).Str("url", a.URL).Msg("PDF download failed")
		return Candidate{}, false
	}
	if !isPDF(resp) {
		// A .pdf URL that answers with a landing page.
		a.fetched = true
		a.Page = r.parse(resp)
		return Candidate{}, false
	}
	return r.fromPDF(ctx, a, resp.Body)
}

func (r *Resolver) fromPDF(ctx context.Context, a *Attempt, data []byte) (Candidate, bool) {
	a.PDF = true
	a.Kind = record.KindPDFLink
	if r.pdf == nil {
		return Candidate{}, false
	}
	title, d := r.pdf.Extract(ctx, data)
	a.noteDOI(d)
	return Candidate{Title: title, DOI: d}, title != ""
}

func (r *Resolver) doiInURL(ctx context.Context, a *Attempt) (Candidate, bool) {
	d := doi.FromURL(a.URL)
	if d == "" {
		return Candidate{}, false
	}
	a.noteDOI(d)
	return r.lookupDOI(ctx, a, d)
}

// lookupDOI queries each DOI at most once per attempt.
func (r *Resolver) lookupDOI(ctx context.Context, a *Attempt, d string) (Candidate, bool) {
	if c, ok := a.looked[d]; ok {
		return c, c.Title != ""
	}
	c := Candidate{DOI: d, Confirmed: true}
	if r.bib != nil {
		w, err := r.bib.LookupDOI(ctx, d)
		if err != nil {
			r.log.Debug().Err(err).Str("doi", d).Msg("DOI lookup failed")
		} else {
			c.Title = w.Title
			if w.DOI != "" {
				c.DOI = w.DOI
			}
		}
	}
	a.looked[d] = c
	return c, c.Title != ""
}

// fetchPage loads the page, following one rel=canonical hop. It yields a
// candidate only when the URL turns out to serve a PDF.
func (r *Resolver) fetchPage(ctx context.Context, a *Attempt) (Candidate, bool) {
	if a.fetched || a.PDF {
		return Candidate{}, false
	}
	a.fetched = true

	resp, err := r.fetch.GetPage(ctx, a.URL)
	if err != nil {
		r.log.Debug().Err(err).Str("url", a.URL).Msg("page fetch failed")
		return Candidate{}, false
	}
	if isPDF(resp) {
		return r.fromPDF(ctx, a, resp.Body)
	}
	a.Page = r.parse(resp)
	if a.Page == nil {
		return Candidate{}, false
	}

	hop := canonicalHop(a, a.Page)
	if hop == "" {
		return Candidate{}, false
	}
	resp, err = r.fetch.GetPage(ctx, hop)
	if err != nil {
		r.log.Debug().Err(err).Str("url", hop).Msg("canonical fetch failed")
		return Candidate{}, false
	}
	if !isPDF(resp) {
		if p := r.parse(resp); p != nil {
			a.Page = p
		}
	}
	return Candidate{}, false
}

// canonicalHop returns the page's rel=canonical URL when it differs from
// both the requested and the fetched URL, else "".
func canonicalHop(a *Attempt, p *Page) string {
	target := p.Canonical()
	if target == "" {
		return ""
	}
	c, ok := canon.Canonicalize(target)
	if !ok || c == a.URL {
		return ""
	}
	if fetched, ok := canon.Canonicalize(p.FetchedURL); ok && c == fetched {
		return ""
	}
	return target
}

func (r *Resolver) parse(resp *httpclient.Response) *Page {
	switch ct := resp.ContentType(); {
	case ct == "", strings.Contains(ct, "html"), strings.Contains(ct, "xml"), ct == "text/plain":
	default:
		return nil
	}
	p, err := page.Parse(resp.Body, resp.Header.Get("Content-Type"), resp.URL)
	if err != nil {
		r.log.Debug().Err(err).Str("url", resp.URL).Msg("unparseable page")
		return nil
	}
	return &Page{Page: p, FetchedURL: resp.URL}
}

func isPDF(resp *httpclient.Response) bool {
	return resp.ContentType() == "application/pdf" || bytes.HasPrefix(resp.Body, []byte("%PDF-"))
}

// rule finds the publisher rule for the input host, else for the host the
// page was finally fetched from.
func (r *Resolver) rule(a *Attempt) (*publisher.Rule, *url.URL) {
	if r.rules == nil {
		return nil, nil
	}
	if rule := r.rules.Lookup(a.Parsed.Hostname()); rule != nil {
		return rule, a.Parsed
	}
	if a.Page != nil {
		if u, err := url.Parse(a.Page.FetchedURL); err == nil {
			if rule := r.rules.Lookup(u.Hostname()); rule != nil {
				return rule, u
			}
		}
	}
	return nil, nil
}

func (r *Resolver) publisherMeta(_ context.Context, a *Attempt) (Candidate, bool) {
	rule, _ := r.rule(a)
	if rule == nil || a.Page == nil || len(rule.Meta) == 0 {
		return Candidate{}, false
	}
	t := a.Page.Meta(rule.Meta...)
	return Candidate{Title: t}, t != ""
}

func (r *Resolver) publisherDerive(ctx context.Context, a *Attempt) (Candidate, bool) {
	rule, u := r.rule(a)
	if rule == nil || rule.Derive == nil || r.bib == nil {
		return Candidate{}, false
	}
	w, err := rule.Derive(ctx, r.bib, u)
	if err != nil {
		r.log.Debug().Err(err).Str("rule", rule.Name).Str("url", a.URL).Msg("publisher lookup failed")
		return Candidate{}, false
	}
	if w == nil {
		return Candidate{}, false
	}
	a.noteDOI(w.DOI)
	return Candidate{Title: w.Title, DOI: w.DOI}, w.Title != ""
}

func pageField(get func(p *Page) string) func(context.Context, *Attempt) (Candidate, bool) {
	return func(_ context.Context, a *Attempt) (Candidate, bool) {
		if a.Page == nil {
			return Candidate{}, false
		}
		t := get(a.Page)
		return Candidate{Title: t}, t != ""
	}
}

func (r *Resolver) pageDOI(ctx context.Context, a *Attempt) (Candidate, bool) {
	if a.Page == nil {
		return Candidate{}, false
	}
	d := a.Page.DeclaredDOI()
	if d == "" {
		return Candidate{}, false
	}
	a.noteDOI(d)
	return r.lookupDOI(ctx, a, d)
}

// search is the last resort. A bare host gives the search nothing to go
// on, so root URLs are skipped.
func (r *Resolver) search(ctx context.Context, a *Attempt) (Candidate, bool) {
	if r.bib == nil || LeafWords(a.Parsed) == "" {
		return Candidate{}, false
	}
	q := searchQuery(a.Parsed)
	w, err := r.bib.Search(ctx, q, Host(a.Parsed))
	if err != nil {
		r.log.Debug().Err(err).Str("query", q).Msg("bibliographic search failed")
		return Candidate{}, false
	}
	return Candidate{Title: w.Title}, w.Title != ""
}
