package publisher

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/matsen/linkharvest/internal/biblio"
	"github.com/matsen/linkharvest/internal/doi"
)

var citationMeta = []string{"citation_title", "dc.title", "dcterms.title"}

func builtin() []Rule {
	return []Rule{
		{
			Name:   "arxiv",
			Hosts:  []string{"arxiv.org"},
			Meta:   []string{"citation_title"},
			Derive: deriveArXiv,
		},
		{
			Name:   "biorxiv",
			Hosts:  []string{"biorxiv.org", "medrxiv.org"},
			Meta:   []string{"citation_title", "dc.title"},
			Derive: deriveDOIInPath,
		},
		{
			Name:   "nature",
			Hosts:  []string{"nature.com"},
			Meta:   []string{"citation_title", "dc.title"},
			Derive: deriveNature,
		},
		{
			Name:   "science",
			Hosts:  []string{"science.org", "sciencemag.org"},
			Meta:   []string{"citation_title", "dc.title"},
			Derive: deriveDOIInPath,
		},
		{
			Name:   "cell",
			Hosts:  []string{"cell.com"},
			Meta:   []string{"citation_title", "og:title"},
			Derive: derivePII,
		},
		{
			Name:   "sciencedirect",
			Hosts:  []string{"sciencedirect.com"},
			Meta:   []string{"citation_title", "dc.title"},
			Derive: derivePII,
		},
		{
			Name:   "pubmed",
			Hosts:  []string{"pubmed.ncbi.nlm.nih.gov"},
			Meta:   []string{"citation_title"},
			Derive: derivePubMed,
		},
		{
			Name:   "pmc",
			Hosts:  []string{"pmc.ncbi.nlm.nih.gov", "ncbi.nlm.nih.gov", "europepmc.org"},
			Meta:   []string{"citation_title"},
			Derive: derivePMC,
		},
		{
			Name:   "ssrn",
			Hosts:  []string{"ssrn.com"},
			Meta:   []string{"citation_title"},
			Derive: deriveSSRN,
		},
		{
			Name:   "oxford",
			Hosts:  []string{"academic.oup.com"},
			Meta:   []string{"citation_title"},
			Derive: deriveOxford,
		},
		{
			Name: "doi-path",
			Hosts: []string{
				"onlinelibrary.wiley.com", "pubs.acs.org", "tandfonline.com",
				"pnas.org", "journals.sagepub.com", "annualreviews.org",
				"journals.plos.org", "royalsocietypublishing.org",
			},
			Meta:   citationMeta,
			Derive: deriveDOIInPath,
		},
	}
}

var arxivPath = regexp.MustCompile(`^/(?:abs|pdf|html)/(.+?)(?:\.pdf)?/?$`)

func deriveArXiv(ctx context.Context, bib Biblio, u *url.URL) (*biblio.Work, error) {
	m := arxivPath.FindStringSubmatch(u.Path)
	if m == nil || !biblio.IsArXivID(m[1]) {
		return nil, nil
	}
	return bib.ArXiv(ctx, m[1])
}

func deriveDOIInPath(ctx context.Context, bib Biblio, u *url.URL) (*biblio.Work, error) {
	d := doi.FromURL(u.String())
	if d == "" {
		return nil, nil
	}
	return bib.LookupDOI(ctx, d)
}

var natureArticle = regexp.MustCompile(`^/articles/([A-Za-z0-9.\-]+?)(?:\.pdf)?/?$`)

// deriveNature maps /articles/<id> to the 10.1038 DOI with the same suffix.
func deriveNature(ctx context.Context, bib Biblio, u *url.URL) (*biblio.Work, error) {
	if d := doi.FromURL(u.String()); d != "" {
		return bib.LookupDOI(ctx, d)
	}
	m := natureArticle.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, nil
	}
	return bib.LookupDOI(ctx, "10.1038/"+strings.ToLower(m[1]))
}

var piiPattern = regexp.MustCompile(`(?i)/(?:pii|fulltext|abstract)/(S?[0-9X()\-]{15,})`)

// derivePII finds an Elsevier publisher item identifier in the path or the
// pii query parameter and looks it up as a Crossref alternative id.
func derivePII(ctx context.Context, bib Biblio, u *url.URL) (*biblio.Work, error) {
	raw := u.Query().Get("pii")
	if raw == "" {
		if m := piiPattern.FindStringSubmatch(u.Path); m != nil {
			raw = m[1]
		}
	}
	pii := NormalizePII(raw)
	if pii == "" {
		return nil, nil
	}
	return bib.ByAlternativeID(ctx, pii)
}

// NormalizePII strips the punctuation of a formatted PII such as
// "S0092-8674(20)30123-4".
func NormalizePII(raw string) string {
	pii := strings.NewReplacer("-", "", "(", "", ")", "").Replace(strings.ToUpper(strings.TrimSpace(raw)))
	if len(pii) < 16 {
		return ""
	}
	return pii
}

var pubmedPath = regexp.MustCompile(`^/(\d{1,9})/?$`)

func derivePubMed(ctx context.Context, bib Biblio, u *url.URL) (*biblio.Work, error) {
	m := pubmedPath.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, nil
	}
	return bib.OpenAlexExternal(ctx, "pmid:"+m[1])
}

var pmcID = regexp.MustCompile(`(?i)/(PMC\d+)`)

func derivePMC(ctx context.Context, bib Biblio, u *url.URL) (*biblio.Work, error) {
	m := pmcID.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, nil
	}
	return bib.OpenAlexExternal(ctx, "pmcid:"+strings.ToUpper(m[1]))
}

var ssrnID = regexp.MustCompile(`^\d+$`)

// deriveSSRN maps abstract_id (or abstract=) to the 10.2139/ssrn.N DOI.
func deriveSSRN(ctx context.Context, bib Biblio, u *url.URL) (*biblio.Work, error) {
	q := u.Query()
	id := q.Get("abstract_id")
	if id == "" {
		id = q.Get("abstract")
	}
	if !ssrnID.MatchString(id) {
		return nil, nil
	}
	return bib.LookupDOI(ctx, "10.2139/ssrn."+id)
}

// OxfordJournal maps an academic.oup.com path slug to the Crossref container
// title and the ADS bibstem.
type OxfordJournal struct {
	Container string
	Bibstem   string
}

// OxfordJournals lists the slugs with known containers. Unknown slugs are
// queried with the slug itself as the container.
var OxfordJournals = map[string]OxfordJournal{
	"mnras":          {"Monthly Notices of the Royal Astronomical Society", "MNRAS"},
	"mnrasl":         {"Monthly Notices of the Royal Astronomical Society: Letters", "MNRAS"},
	"gji":            {"Geophysical Journal International", "GeoJI"},
	"pasj":           {"Publications of the Astronomical Society of Japan", "PASJ"},
	"ptep":           {"Progress of Theoretical and Experimental Physics", "PTEP"},
	"bioinformatics": {"Bioinformatics", ""},
	"nar":            {"Nucleic Acids Research", ""},
	"mbe":            {"Molecular Biology and Evolution", ""},
	"sysbio":         {"Systematic Biology", ""},
	"gbe":            {"Genome Biology and Evolution", ""},
	"ve":             {"Virus Evolution", ""},
}

var oxfordArticle = regexp.MustCompile(`^/([a-z0-9\-]+)/article/(\d+)/(\d+)/([A-Za-z]?\d+)(?:/|$)`)

// deriveOxford resolves /<journal>/article/<vol>/<issue>/<page>/... through
// a structured Crossref query, then ADS for astronomy journals.
func deriveOxford(ctx context.Context, bib Biblio, u *url.URL) (*biblio.Work, error) {
	if d := doi.FromURL(u.String()); d != "" {
		return bib.LookupDOI(ctx, d)
	}
	m := oxfordArticle.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, nil
	}
	slug, volume, issue, page := m[1], m[2], m[3], m[4]
	journal, ok := OxfordJournals[slug]
	if !ok {
		journal = OxfordJournal{Container: slug}
	}

	w, err := bib.SearchStructured(ctx, biblio.StructuredQuery{
		Container: journal.Container,
		Volume:    volume,
		Issue:     issue,
		Page:      page,
	})
	if err == nil && w != nil && w.Title != "" {
		return w, nil
	}
	if journal.Bibstem == "" {
		return nil, err
	}
	return bib.ADS(ctx, journal.Bibstem, volume, page)
}
