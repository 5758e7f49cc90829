package biblio

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/matsen/linkharvest/internal/doi"
)

// StructuredQuery describes a journal article by its citation coordinates.
type StructuredQuery struct {
	Container string
	Volume    string
	Issue     string
	Page      string
}

// CrossrefDOI fetches works/{doi}.
func (c *Client) CrossrefDOI(ctx context.Context, d string) (*Work, error) {
	body, err := c.get(ctx, "crossref", c.crossrefURL+"/works/"+escapeDOI(d)+c.query(url.Values{}), nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("crossref: %w", ErrInvalidResponse)
	}
	w := crossrefWork(gjson.GetBytes(body, "message"))
	if w.Title == "" {
		return nil, fmt.Errorf("crossref: %w for %s", ErrNoResult, d)
	}
	return &w, nil
}

// CrossrefSearch runs a bibliographic free-text query.
func (c *Client) CrossrefSearch(ctx context.Context, query string) ([]Work, error) {
	params := url.Values{}
	params.Set("query.bibliographic", query)
	params.Set("rows", strconv.Itoa(SearchRows))
	return c.crossrefList(ctx, params)
}

// SearchStructured queries Crossref by container title and citation
// coordinates and returns the first item whose volume and first page agree.
func (c *Client) SearchStructured(ctx context.Context, q StructuredQuery) (*Work, error) {
	if q.Container == "" || q.Volume == "" || q.Page == "" {
		return nil, fmt.Errorf("%w: incomplete structured query", ErrNoResult)
	}
	params := url.Values{}
	params.Set("query.container-title", q.Container)
	params.Set("query.bibliographic", strings.Join([]string{q.Volume, q.Issue, q.Page}, " "))
	params.Set("rows", strconv.Itoa(SearchRows))

	works, err := c.crossrefList(ctx, params)
	if err != nil {
		return nil, err
	}
	for i := range works {
		w := &works[i]
		if w.Title == "" || w.Volume != q.Volume {
			continue
		}
		if firstPage(w.Page) == firstPage(q.Page) {
			return w, nil
		}
	}
	return nil, fmt.Errorf("crossref: %w for %s %s:%s", ErrNoResult, q.Container, q.Volume, q.Page)
}

// ByAlternativeID finds a work by a publisher identifier such as an
// Elsevier PII.
func (c *Client) ByAlternativeID(ctx context.Context, id string) (*Work, error) {
	params := url.Values{}
	params.Set("filter", "alternative-id:"+id)
	params.Set("rows", "1")

	works, err := c.crossrefList(ctx, params)
	if err != nil {
		return nil, err
	}
	if w := pickCandidate(works, ""); w != nil {
		return w, nil
	}
	return nil, fmt.Errorf("crossref: %w for alternative id %s", ErrNoResult, id)
}

func (c *Client) crossrefList(ctx context.Context, params url.Values) ([]Work, error) {
	body, err := c.get(ctx, "crossref", c.crossrefURL+"/works"+c.query(params), nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("crossref: %w", ErrInvalidResponse)
	}

	var works []Work
	gjson.GetBytes(body, "message.items").ForEach(func(_, item gjson.Result) bool {
		works = append(works, crossrefWork(item))
		return true
	})
	return works, nil
}

func crossrefWork(m gjson.Result) Work {
	landing := m.Get("resource.primary.URL").String()
	if landing == "" {
		landing = m.Get("URL").String()
	}
	return Work{
		Title:     cleanTitle(m.Get("title.0").String()),
		DOI:       doi.Normalize(m.Get("DOI").String()),
		URL:       landing,
		Container: m.Get("container-title.0").String(),
		Volume:    m.Get("volume").String(),
		Issue:     m.Get("issue").String(),
		Page:      m.Get("page").String(),
		Source:    "crossref",
	}
}

func (c *Client) query(params url.Values) string {
	params = c.withMailto(params)
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

// firstPage returns the start of a page range like "123-145".
func firstPage(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "-–"); i >= 0 {
		p = p[:i]
	}
	return strings.TrimSpace(p)
}
