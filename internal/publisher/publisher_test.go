package publisher

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/linkharvest/internal/biblio"
)

// fakeBiblio records the last call and answers with a titled work.
type fakeBiblio struct {
	calls      []string
	structured biblio.StructuredQuery
	structErr  error
}

func (f *fakeBiblio) hit(call string) (*biblio.Work, error) {
	f.calls = append(f.calls, call)
	return &biblio.Work{Title: "title for " + call}, nil
}

func (f *fakeBiblio) LookupDOI(_ context.Context, d string) (*biblio.Work, error) {
	return f.hit("doi:" + d)
}

func (f *fakeBiblio) ArXiv(_ context.Context, id string) (*biblio.Work, error) {
	return f.hit("arxiv:" + id)
}

func (f *fakeBiblio) SearchStructured(_ context.Context, q biblio.StructuredQuery) (*biblio.Work, error) {
	f.structured = q
	if f.structErr != nil {
		f.calls = append(f.calls, "structured")
		return nil, f.structErr
	}
	return f.hit("structured")
}

func (f *fakeBiblio) ByAlternativeID(_ context.Context, id string) (*biblio.Work, error) {
	return f.hit("alt:" + id)
}

func (f *fakeBiblio) OpenAlexExternal(_ context.Context, id string) (*biblio.Work, error) {
	return f.hit("openalex:" + id)
}

func (f *fakeBiblio) ADS(_ context.Context, bibstem, volume, page string) (*biblio.Work, error) {
	return f.hit("ads:" + bibstem + "/" + volume + "/" + page)
}

func derive(t *testing.T, reg *Registry, bib *fakeBiblio, raw string) (*Rule, *biblio.Work) {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	rule := reg.Lookup(u.Hostname())
	require.NotNil(t, rule, "no rule for %s", raw)
	w, err := rule.Derive(context.Background(), bib, u)
	require.NoError(t, err)
	return rule, w
}

func TestDeriveLookups(t *testing.T) {
	tests := []struct {
		url      string
		rule     string
		wantCall string
	}{
		{"https://arxiv.org/abs/1706.03762v7", "arxiv", "arxiv:1706.03762v7"},
		{"https://arxiv.org/pdf/2301.00001.pdf", "arxiv", "arxiv:2301.00001"},
		{"https://www.biorxiv.org/content/10.1101/2020.01.01.123456v2.full", "biorxiv", "doi:10.1101/2020.01.01.123456"},
		{"https://www.nature.com/articles/s41586-020-2649-2", "nature", "doi:10.1038/s41586-020-2649-2"},
		{"https://www.science.org/doi/10.1126/science.abc1234", "science", "doi:10.1126/science.abc1234"},
		{"https://www.cell.com/cell/fulltext/S0092-8674(20)30123-4", "cell", "alt:S0092867420301234"},
		{"https://www.sciencedirect.com/science/article/pii/S0092867420301234", "sciencedirect", "alt:S0092867420301234"},
		{"https://pubmed.ncbi.nlm.nih.gov/32939066/", "pubmed", "openalex:pmid:32939066"},
		{"https://www.ncbi.nlm.nih.gov/pmc/articles/PMC7123456/", "pmc", "openalex:pmcid:PMC7123456"},
		{"https://papers.ssrn.com/sol3/papers.cfm?abstract_id=3456789", "ssrn", "doi:10.2139/ssrn.3456789"},
		{"https://onlinelibrary.wiley.com/doi/full/10.1111/evo.14000", "doi-path", "doi:10.1111/evo.14000"},
	}

	reg := Default()
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			bib := &fakeBiblio{}
			rule, w := derive(t, reg, bib, tt.url)
			assert.Equal(t, tt.rule, rule.Name)
			require.NotNil(t, w)
			assert.Equal(t, []string{tt.wantCall}, bib.calls)
		})
	}
}

func TestDeriveNothingUsable(t *testing.T) {
	reg := Default()
	for _, raw := range []string{
		"https://arxiv.org/list/cs.LG/recent",
		"https://www.nature.com/nature/volumes/600",
		"https://pubmed.ncbi.nlm.nih.gov/?term=hemagglutinin",
		"https://papers.ssrn.com/sol3/papers.cfm?abstract_id=abc",
	} {
		bib := &fakeBiblio{}
		_, w := derive(t, reg, bib, raw)
		assert.Nil(t, w, raw)
		assert.Empty(t, bib.calls, raw)
	}
}

func TestOxfordStructuredThenADS(t *testing.T) {
	reg := Default()
	raw := "https://academic.oup.com/mnras/article/501/2/1234/6000000"

	bib := &fakeBiblio{}
	_, w := derive(t, reg, bib, raw)
	require.NotNil(t, w)
	assert.Equal(t, biblio.StructuredQuery{
		Container: "Monthly Notices of the Royal Astronomical Society",
		Volume:    "501", Issue: "2", Page: "1234",
	}, bib.structured)
	assert.Equal(t, []string{"structured"}, bib.calls)

	bib = &fakeBiblio{structErr: biblio.ErrNoResult}
	_, w = derive(t, reg, bib, raw)
	require.NotNil(t, w)
	assert.Equal(t, []string{"structured", "ads:MNRAS/501/1234"}, bib.calls)
}

func TestOxfordWithoutBibstem(t *testing.T) {
	u, err := url.Parse("https://academic.oup.com/bioinformatics/article/36/1/1/5000000")
	require.NoError(t, err)
	bib := &fakeBiblio{structErr: biblio.ErrNoResult}
	w, err := Default().Lookup(u.Hostname()).Derive(context.Background(), bib, u)
	assert.Nil(t, w)
	assert.True(t, errors.Is(err, biblio.ErrNoResult))
	assert.Equal(t, []string{"structured"}, bib.calls)
}

func TestLookupMostSpecificHost(t *testing.T) {
	reg := Default()
	assert.Equal(t, "pubmed", reg.Lookup("pubmed.ncbi.nlm.nih.gov").Name)
	assert.Equal(t, "pmc", reg.Lookup("www.ncbi.nlm.nih.gov").Name)
	assert.Equal(t, "nature", reg.Lookup("WWW.Nature.com").Name)
	assert.Nil(t, reg.Lookup("example.org"))
}

func TestRegisterReplacesByName(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Rule{Name: "acme", Hosts: []string{"acme.org"}, Meta: []string{"og:title"}})
	reg.Register(Rule{Name: "acme", Hosts: []string{"acme.org"}, Meta: []string{"citation_title"}})
	assert.Equal(t, []string{"acme"}, reg.Names())
	assert.Equal(t, []string{"citation_title"}, reg.Lookup("journals.acme.org").Meta)
}

func TestNormalizePII(t *testing.T) {
	assert.Equal(t, "S0092867420301234", NormalizePII("S0092-8674(20)30123-4"))
	assert.Equal(t, "", NormalizePII("S123"))
}
