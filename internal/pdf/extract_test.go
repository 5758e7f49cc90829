package pdf

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeLookup struct {
	title string
	err   error
	got   string
}

func (f *fakeLookup) TitleForDOI(_ context.Context, d string) (string, error) {
	f.got = d
	return f.title, f.err
}

func newTestExtractor(lookup TitleLookup) *Extractor {
	return NewExtractor(nil, lookup, zerolog.Nop())
}

func TestExtractTextFirstPageScenario(t *testing.T) {
	page := "ABSTRACT\nSmith J, Doe A.\nA Novel Method for Protein Folding Prediction\nReceived 3 Jan 2023"

	title, d := newTestExtractor(nil).ExtractText(context.Background(), "", []string{page})
	assert.Equal(t, "A Novel Method for Protein Folding Prediction", title)
	assert.Equal(t, "", d)
}

func TestExtractTextJoinsWrappedTitle(t *testing.T) {
	page := "Vol. 12, No. 3\n" +
		"Deep mutational scanning of the\n" +
		"influenza hemagglutinin stalk\n" +
		"J. Smith, A. Doe and B. Roe\n" +
		"Department of Biology, University of Washington, Seattle\n" +
		"Abstract\n" +
		"We measured the effect of every amino acid mutation on stalk folding and antibody escape."

	title, _ := newTestExtractor(nil).ExtractText(context.Background(), "", []string{page})
	assert.Equal(t, "Deep mutational scanning of the influenza hemagglutinin stalk", title)
}

func TestExtractTextMetadataTitle(t *testing.T) {
	lookup := &fakeLookup{title: "Should not be used"}
	title, d := newTestExtractor(lookup).ExtractText(context.Background(),
		"  Evolution of  antibody escape in SARS-CoV-2 ",
		[]string{"Some text\ndoi:10.1234/abcd.5678"})
	assert.Equal(t, "Evolution of antibody escape in SARS-CoV-2", title)
	assert.Equal(t, "10.1234/abcd.5678", d, "DOI is returned alongside a metadata title")
	assert.Equal(t, "", lookup.got)
}

func TestExtractTextBoilerplateMetadataIgnored(t *testing.T) {
	for _, meta := range []string{"Microsoft Word - draft.docx", "untitled", "short", "manuscript_v3.pdf"} {
		title, _ := newTestExtractor(nil).ExtractText(context.Background(), meta,
			[]string{"Phylogenetic inference under recombination"})
		assert.Equal(t, "Phylogenetic inference under recombination", title, meta)
	}
}

func TestExtractTextDOILookup(t *testing.T) {
	pages := []string{
		"Cover page",
		"Running head\nhttps://doi.org/10.1101/2024.05.06.592001\nMore text",
	}
	lookup := &fakeLookup{title: "Looked-up &amp; cleaned title"}

	title, d := newTestExtractor(lookup).ExtractText(context.Background(), "", pages)
	assert.Equal(t, "Looked-up & cleaned title", title)
	assert.Equal(t, "10.1101/2024.05.06.592001", d)
	assert.Equal(t, "10.1101/2024.05.06.592001", lookup.got)
}

func TestExtractTextLookupFailureFallsBack(t *testing.T) {
	pages := []string{"Bayesian phylogenetics with BEAST\ndoi: 10.1093/ve/vey016"}
	lookup := &fakeLookup{err: errors.New("no result")}

	title, d := newTestExtractor(lookup).ExtractText(context.Background(), "", pages)
	assert.Equal(t, "Bayesian phylogenetics with BEAST", title)
	assert.Equal(t, "10.1093/ve/vey016", d)
}

func TestExtractTextUppercaseFallback(t *testing.T) {
	page := "2023-01-05\nGENOME ASSEMBLY AT SCALE"
	title, _ := newTestExtractor(nil).ExtractText(context.Background(), "", []string{page})
	assert.Equal(t, "GENOME ASSEMBLY AT SCALE", title)
}

func TestExtractTextNoPages(t *testing.T) {
	title, d := newTestExtractor(nil).ExtractText(context.Background(), "", nil)
	assert.Equal(t, "", title)
	assert.Equal(t, "", d)
}

func TestExtractUnreadableBytes(t *testing.T) {
	e := newTestExtractor(nil)
	for _, data := range [][]byte{nil, []byte("not a pdf at all"), []byte("%PDF-1.4\n%%EOF")} {
		title, d := e.Extract(context.Background(), data)
		assert.Equal(t, "", title)
		assert.Equal(t, "", d)
	}
}

func TestRefineDropsNotice(t *testing.T) {
	e := newTestExtractor(nil)
	assert.Equal(t, "Protein folding at scale.",
		e.refine("Protein folding at scale. Licensed under Creative Commons"))
	assert.Equal(t, "Single fragment title", e.refine("Single fragment title"))
	assert.Equal(t, "Mixed Case Survives.",
		e.refine("ALL CAPS BANNER HERE. Mixed Case Survives."))
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"One.", "Two?", "Three"}, splitSentences("One. Two? Three"))
	assert.Equal(t, []string{"No split here"}, splitSentences("No split here"))
}
