package biblio

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/matsen/linkharvest/internal/doi"
)

// OpenAlexDOI fetches works/https://doi.org/{doi}.
func (c *Client) OpenAlexDOI(ctx context.Context, d string) (*Work, error) {
	return c.OpenAlexExternal(ctx, "https://doi.org/"+d)
}

// OpenAlexExternal fetches a work by an external id OpenAlex understands,
// such as "pmid:12345", "pmcid:PMC123" or a doi.org URL.
func (c *Client) OpenAlexExternal(ctx context.Context, id string) (*Work, error) {
	body, err := c.get(ctx, "openalex", c.openAlexURL+"/works/"+id+c.query(url.Values{}), nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("openalex: %w", ErrInvalidResponse)
	}
	w := openAlexWork(gjson.ParseBytes(body))
	if w.Title == "" {
		return nil, fmt.Errorf("openalex: %w for %s", ErrNoResult, id)
	}
	return &w, nil
}

// OpenAlexSearch runs a free-text works search.
func (c *Client) OpenAlexSearch(ctx context.Context, query string) ([]Work, error) {
	params := url.Values{}
	params.Set("search", query)
	params.Set("per_page", strconv.Itoa(SearchRows))

	body, err := c.get(ctx, "openalex", c.openAlexURL+"/works"+c.query(params), nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("openalex: %w", ErrInvalidResponse)
	}

	var works []Work
	gjson.GetBytes(body, "results").ForEach(func(_, item gjson.Result) bool {
		works = append(works, openAlexWork(item))
		return true
	})
	return works, nil
}

func openAlexWork(m gjson.Result) Work {
	title := m.Get("title").String()
	if title == "" {
		title = m.Get("display_name").String()
	}
	landing := m.Get("primary_location.landing_page_url").String()
	return Work{
		Title:     cleanTitle(title),
		DOI:       doi.Normalize(m.Get("doi").String()),
		URL:       landing,
		Container: m.Get("primary_location.source.display_name").String(),
		Volume:    m.Get("biblio.volume").String(),
		Issue:     m.Get("biblio.issue").String(),
		Page:      m.Get("biblio.first_page").String(),
		Source:    "openalex",
	}
}
