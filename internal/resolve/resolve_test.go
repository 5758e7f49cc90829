package resolve

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/linkharvest/internal/biblio"
	"github.com/matsen/linkharvest/internal/heuristics"
	"github.com/matsen/linkharvest/internal/httpclient"
	"github.com/matsen/linkharvest/internal/record"
)

type fakePage struct {
	contentType string
	body        string
	finalURL    string
	err         error
}

type fakeFetcher struct {
	pages map[string]fakePage
	calls []string
}

func (f *fakeFetcher) respond(u string) (*httpclient.Response, error) {
	f.calls = append(f.calls, u)
	p, ok := f.pages[u]
	if !ok {
		return nil, &httpclient.StatusError{Method: http.MethodGet, StatusCode: http.StatusNotFound, URL: u}
	}
	if p.err != nil {
		return nil, p.err
	}
	final := p.finalURL
	if final == "" {
		final = u
	}
	ct := p.contentType
	if ct == "" {
		ct = "text/html; charset=utf-8"
	}
	return &httpclient.Response{
		URL:        final,
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {ct}},
		Body:       []byte(p.body),
	}, nil
}

func (f *fakeFetcher) Get(_ context.Context, u string, _ http.Header) (*httpclient.Response, error) {
	return f.respond(u)
}

func (f *fakeFetcher) GetPage(_ context.Context, u string) (*httpclient.Response, error) {
	return f.respond(u)
}

type fakeBiblio struct {
	dois      map[string]string // doi -> title
	search    *biblio.Work
	searchErr error
	queries   []string
	looked    []string
}

func (b *fakeBiblio) LookupDOI(_ context.Context, d string) (*biblio.Work, error) {
	b.looked = append(b.looked, d)
	if t, ok := b.dois[d]; ok {
		return &biblio.Work{Title: t, DOI: d}, nil
	}
	return nil, biblio.ErrNoResult
}

func (b *fakeBiblio) Search(_ context.Context, q, host string) (*biblio.Work, error) {
	b.queries = append(b.queries, q+"@"+host)
	if b.search == nil {
		if b.searchErr != nil {
			return nil, b.searchErr
		}
		return nil, biblio.ErrNoResult
	}
	return b.search, nil
}

func (b *fakeBiblio) ArXiv(context.Context, string) (*biblio.Work, error) {
	return nil, biblio.ErrNoResult
}

func (b *fakeBiblio) SearchStructured(context.Context, biblio.StructuredQuery) (*biblio.Work, error) {
	return nil, biblio.ErrNoResult
}

func (b *fakeBiblio) ByAlternativeID(context.Context, string) (*biblio.Work, error) {
	return nil, biblio.ErrNoResult
}

func (b *fakeBiblio) OpenAlexExternal(context.Context, string) (*biblio.Work, error) {
	return nil, biblio.ErrNoResult
}

func (b *fakeBiblio) ADS(context.Context, string, string, string) (*biblio.Work, error) {
	return nil, biblio.ErrNoCredentials
}

type fakePDF struct {
	title, doi string
	calls      int
}

func (p *fakePDF) Extract(context.Context, []byte) (string, string) {
	p.calls++
	return p.title, p.doi
}

func newTestResolver(f *fakeFetcher, b *fakeBiblio, p *fakePDF) *Resolver {
	if f.pages == nil {
		f.pages = map[string]fakePage{}
	}
	if b.dois == nil {
		b.dois = map[string]string{}
	}
	return New(f, b, p)
}

func TestDOIInURLBeforeFetch(t *testing.T) {
	f := &fakeFetcher{}
	b := &fakeBiblio{dois: map[string]string{"10.1101/2024.01.01.000001": "A preprint &amp; its  title"}}
	r := newTestResolver(f, b, &fakePDF{})

	rec := r.Resolve(context.Background(), Request{URL: "https://doi.org/10.1101/2024.01.01.000001"})
	assert.Equal(t, "A preprint & its title", rec.Title)
	assert.Equal(t, "10.1101/2024.01.01.000001", rec.DOI)
	assert.Equal(t, StrategyDOIInURL, rec.Source)
	assert.Equal(t, record.KindHTML, rec.Kind)
	assert.Empty(t, f.calls, "no HTML fetch when the DOI lookup succeeds")
}

func TestDOIInURLMissFallsThroughToPage(t *testing.T) {
	u := "https://journals.example.org/doi/10.1234/abc.5678"
	f := &fakeFetcher{pages: map[string]fakePage{
		u: {body: `<html><head><meta name="citation_title" content="Scraped title"></head></html>`},
	}}
	b := &fakeBiblio{}
	rec := newTestResolver(f, b, &fakePDF{}).Resolve(context.Background(), Request{URL: u})

	assert.Equal(t, "Scraped title", rec.Title)
	assert.Equal(t, StrategyMeta, rec.Source)
	assert.Equal(t, "10.1234/abc.5678", rec.DOI, "DOI from the URL is kept")
	assert.Equal(t, []string{"10.1234/abc.5678"}, b.looked, "the same DOI is not looked up twice")
}

func TestMetaTitleAndDeclaredDOI(t *testing.T) {
	u := "https://example.org/articles/x"
	f := &fakeFetcher{pages: map[string]fakePage{
		u: {body: `<html><head>
			<title>Site | Something</title>
			<meta property="og:title" content="Open Graph title">
			<meta name="citation_doi" content="10.5555/Declared.1">
			</head><body><h1>Heading</h1></body></html>`},
	}}
	rec := newTestResolver(f, &fakeBiblio{}, &fakePDF{}).Resolve(context.Background(), Request{URL: u})

	assert.Equal(t, "Open Graph title", rec.Title)
	assert.Equal(t, StrategyMeta, rec.Source)
	assert.Equal(t, "10.5555/declared.1", rec.DOI)
}

func TestPublisherMetaWins(t *testing.T) {
	u := "https://www.nature.com/articles/s41586-020-2649-2"
	f := &fakeFetcher{pages: map[string]fakePage{
		u: {body: `<html><head>
			<meta property="og:title" content="Nature">
			<meta name="citation_title" content="Array programming with NumPy">
			</head></html>`},
	}}
	b := &fakeBiblio{}
	rec := newTestResolver(f, b, &fakePDF{}).Resolve(context.Background(), Request{URL: u})

	assert.Equal(t, "Array programming with NumPy", rec.Title)
	assert.Equal(t, StrategyPublisherMeta, rec.Source)
	assert.Empty(t, b.looked, "derive is not needed when the trusted meta is present")
}

func TestPublisherDerive(t *testing.T) {
	u := "https://www.nature.com/articles/s41586-020-2649-2"
	f := &fakeFetcher{pages: map[string]fakePage{u: {err: errors.New("connection reset")}}}
	b := &fakeBiblio{dois: map[string]string{"10.1038/s41586-020-2649-2": "Array programming with NumPy"}}
	rec := newTestResolver(f, b, &fakePDF{}).Resolve(context.Background(), Request{URL: u})

	assert.Equal(t, "Array programming with NumPy", rec.Title)
	assert.Equal(t, StrategyPublisher, rec.Source)
	assert.Equal(t, "10.1038/s41586-020-2649-2", rec.DOI)
}

func TestCanonicalHop(t *testing.T) {
	a := "https://example.org/view?id=7"
	c := "https://example.org/articles/seven"
	f := &fakeFetcher{pages: map[string]fakePage{
		a: {body: `<html><head><link rel="canonical" href="/articles/seven"></head></html>`},
		c: {body: `<html><head><meta name="citation_title" content="Canonical title"><link rel="canonical" href="/view?id=7"></head></html>`},
	}}
	rec := newTestResolver(f, &fakeBiblio{}, &fakePDF{}).Resolve(context.Background(), Request{URL: a})

	assert.Equal(t, "Canonical title", rec.Title)
	assert.Equal(t, a, rec.URL, "the record keeps the input URL")
	assert.Equal(t, []string{a, c}, f.calls, "exactly one canonical hop")
}

func TestSelfCanonicalNoHop(t *testing.T) {
	u := "https://example.org/articles/x"
	f := &fakeFetcher{pages: map[string]fakePage{
		u: {body: `<html><head><title>Real title</title><link rel="canonical" href="https://EXAMPLE.org/articles/x/?utm_source=feed"></head></html>`},
	}}
	newTestResolver(f, &fakeBiblio{}, &fakePDF{}).Resolve(context.Background(), Request{URL: u})
	assert.Equal(t, []string{u}, f.calls)
}

func TestNumericTitlesBecomePlaceholder(t *testing.T) {
	u := "https://example.org/item/20240105"
	f := &fakeFetcher{pages: map[string]fakePage{
		u: {body: `<html><head><title>2024-01-05</title></head><body><h1>12345</h1></body></html>`},
	}}
	b := &fakeBiblio{}
	rec := newTestResolver(f, b, &fakePDF{}).Resolve(context.Background(), Request{URL: u})

	assert.Equal(t, "Untitled (example.org)", rec.Title)
	assert.Equal(t, SourcePlaceholder, rec.Source)
	assert.Len(t, f.calls, 1, "the forced pass reuses the fetched page")
	assert.Len(t, b.queries, 1, "the forced pass does not search again")
}

func TestForcedPassAcceptsCodeLikeTitle(t *testing.T) {
	u := "https://example.org/item/abc123"
	f := &fakeFetcher{pages: map[string]fakePage{
		u: {body: `<html><head><title>ABC123</title></head></html>`},
	}}
	rec := newTestResolver(f, &fakeBiblio{}, &fakePDF{}).Resolve(context.Background(), Request{URL: u})

	assert.Equal(t, "ABC123", rec.Title)
	assert.Equal(t, StrategyTitleTag, rec.Source)
}

func TestFetchFailureInfersFromURL(t *testing.T) {
	u := "https://example.org/papers/deep-mutational-scanning"
	f := &fakeFetcher{pages: map[string]fakePage{u: {err: errors.New("timeout")}}}
	b := &fakeBiblio{searchErr: errors.New("crossref down")}
	rec := newTestResolver(f, b, &fakePDF{}).Resolve(context.Background(), Request{URL: u})

	assert.Equal(t, "Deep Mutational Scanning", rec.Title)
	assert.Equal(t, SourceInferred, rec.Source)
	assert.Equal(t, []string{"deep mutational scanning@example.org"}, b.queries)
}

func TestPageDOILookup(t *testing.T) {
	u := "https://example.org/reader/view"
	f := &fakeFetcher{pages: map[string]fakePage{
		u: {body: `<html><body><p>Cite as doi:10.1000/xyz123 please.</p></body></html>`},
	}}
	b := &fakeBiblio{dois: map[string]string{"10.1000/xyz123": "Looked up title"}}
	rec := newTestResolver(f, b, &fakePDF{}).Resolve(context.Background(), Request{URL: u})

	assert.Equal(t, "Looked up title", rec.Title)
	assert.Equal(t, StrategyPageDOI, rec.Source)
	assert.Equal(t, "10.1000/xyz123", rec.DOI)
}

func TestSearchLastResort(t *testing.T) {
	u := "https://example.org/blog/protein_folding-at-scale"
	f := &fakeFetcher{pages: map[string]fakePage{u: {body: `<html><body><p>nothing here</p></body></html>`}}}
	b := &fakeBiblio{search: &biblio.Work{Title: "Protein folding at scale", DOI: "10.1/fuzzy"}}
	rec := newTestResolver(f, b, &fakePDF{}).Resolve(context.Background(), Request{URL: u})

	assert.Equal(t, "Protein folding at scale", rec.Title)
	assert.Equal(t, StrategySearch, rec.Source)
	assert.Equal(t, "", rec.DOI, "search hits do not attach a DOI")
	assert.Equal(t, []string{"protein folding at scale@example.org"}, b.queries)
}

func TestPDFLink(t *testing.T) {
	u := "https://example.org/files/paper.pdf"
	f := &fakeFetcher{pages: map[string]fakePage{u: {contentType: "application/pdf", body: "%PDF-1.7 ..."}}}
	p := &fakePDF{title: "A Novel Method for Protein Folding Prediction", doi: "10.1000/pdf.1"}
	rec := newTestResolver(f, &fakeBiblio{}, p).Resolve(context.Background(), Request{URL: u})

	assert.Equal(t, "A Novel Method for Protein Folding Prediction", rec.Title)
	assert.Equal(t, record.KindPDFLink, rec.Kind)
	assert.Equal(t, StrategyPDFLink, rec.Source)
	assert.Equal(t, "10.1000/pdf.1", rec.DOI)
	assert.Equal(t, 1, p.calls)
}

func TestPDFByInspectedContentType(t *testing.T) {
	u := "https://example.org/download?id=9"
	f := &fakeFetcher{pages: map[string]fakePage{u: {contentType: "application/octet-stream", body: "%PDF-1.4 ..."}}}
	p := &fakePDF{title: "Inspected PDF title"}
	rec := newTestResolver(f, &fakeBiblio{}, p).Resolve(context.Background(),
		Request{URL: u, ContentType: "application/pdf"})

	assert.Equal(t, "Inspected PDF title", rec.Title)
	assert.Equal(t, record.KindPDFLink, rec.Kind)
}

func TestPDFURLServingHTML(t *testing.T) {
	u := "https://example.org/paper.pdf"
	f := &fakeFetcher{pages: map[string]fakePage{u: {body: `<html><head><title>Landing page title</title></head></html>`}}}
	p := &fakePDF{}
	rec := newTestResolver(f, &fakeBiblio{}, p).Resolve(context.Background(), Request{URL: u})

	assert.Equal(t, "Landing page title", rec.Title)
	assert.Equal(t, record.KindHTML, rec.Kind)
	assert.Equal(t, 0, p.calls)
	assert.Len(t, f.calls, 1, "the landing page is not fetched twice")
}

func TestResolveChatPDF(t *testing.T) {
	r := newTestResolver(&fakeFetcher{}, &fakeBiblio{}, &fakePDF{title: "Extracted title", doi: "10.1000/x.y"})
	rec := r.ResolveChatPDF(context.Background(), []byte("%PDF"), "https://lab.slack.com/archives/C1/p1", "", "x.pdf")
	assert.Equal(t, "Extracted title", rec.Title)
	assert.Equal(t, "10.1000/x.y", rec.DOI)
	assert.Equal(t, record.KindChatPDF, rec.Kind)
	assert.Equal(t, "https://lab.slack.com/archives/C1/p1", rec.URL)

	r = newTestResolver(&fakeFetcher{}, &fakeBiblio{}, &fakePDF{})
	rec = r.ResolveChatPDF(context.Background(), []byte("%PDF"), "https://lab.slack.com/archives/C1/p2", "", "Smith_2023_review.PDF")
	assert.Equal(t, "Smith 2023 review", rec.Title)
	assert.Equal(t, SourceFileName, rec.Source)

	rec = r.ResolveChatPDF(context.Background(), nil, "https://lab.slack.com/archives/C1/p3", "", "20230101.pdf")
	assert.Equal(t, "Untitled (lab.slack.com)", rec.Title)
}

func TestCustomStrategies(t *testing.T) {
	calls := 0
	s := NewStrategy("static", true, func(context.Context, *Attempt) (Candidate, bool) {
		calls++
		return Candidate{Title: "Static title"}, true
	})
	r := New(&fakeFetcher{}, &fakeBiblio{}, &fakePDF{}, WithStrategies(s))
	rec := r.Resolve(context.Background(), Request{URL: "https://example.org/x"})
	assert.Equal(t, "Static title", rec.Title)
	assert.Equal(t, "static", rec.Source)
	assert.Equal(t, 1, calls)
}

func TestPolicy(t *testing.T) {
	p := NewPolicy(heuristics.Default())

	ok, numeric := p.Accept(Candidate{Title: "2024-01-05"}, false)
	assert.False(t, ok)
	assert.True(t, numeric)

	ok, _ = p.Accept(Candidate{Title: "2024-01-05"}, true)
	assert.True(t, ok, "forced pass accepts anything non-empty")

	ok, _ = p.Accept(Candidate{Title: "PMC1234567", Confirmed: true}, false)
	assert.True(t, ok, "confirmed DOI hits skip the numeric test")

	ok, _ = p.Accept(Candidate{}, true)
	assert.False(t, ok)

	assert.True(t, p.NeedsRetry(true, false))
	assert.False(t, p.NeedsRetry(true, true))
	assert.False(t, p.NeedsRetry(false, false))

	title, replaced := p.Gate("12345 678", "example.org")
	assert.True(t, replaced)
	assert.Equal(t, "Untitled (example.org)", title)

	title, replaced = p.Gate("Figure 1 of 2", "example.org")
	assert.False(t, replaced)
	assert.Equal(t, "Figure 1 of 2", title)
}

func TestInferTitle(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://example.org/view?title=Phylogenetics%20for%20all&id=3", "Phylogenetics for all"},
		{"https://example.org/papers/deep_mutational-scanning.html", "Deep Mutational Scanning"},
		{"https://www.example.org/p/ab", "example.org"},
		{"https://example.org/", "example.org"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, InferTitle(u), tt.raw)
	}
}

func TestSearchQuery(t *testing.T) {
	u, _ := url.Parse("https://example.org/a/b/12345")
	assert.Equal(t, "example.org a b 12345", searchQuery(u))
	u, _ = url.Parse("https://example.org/a/two-words")
	assert.Equal(t, "two words", searchQuery(u))
}
