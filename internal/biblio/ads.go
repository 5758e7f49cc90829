package biblio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/matsen/linkharvest/internal/doi"
)

// ADS searches NASA ADS by journal bibstem, volume and first page. It needs
// an API token.
func (c *Client) ADS(ctx context.Context, bibstem, volume, page string) (*Work, error) {
	if c.adsToken == "" {
		return nil, ErrNoCredentials
	}
	if bibstem == "" || volume == "" || page == "" {
		return nil, fmt.Errorf("%w: incomplete ADS query", ErrNoResult)
	}

	params := url.Values{}
	params.Set("q", fmt.Sprintf("bibstem:%q volume:%s page:%s", bibstem, volume, firstPage(page)))
	params.Set("fl", "title,doi,bibcode,pub,volume,page")
	params.Set("rows", "1")

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.adsToken)
	body, err := c.get(ctx, "ads", c.adsURL+"/search/query?"+params.Encode(), header)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("ads: %w", ErrInvalidResponse)
	}

	d := gjson.GetBytes(body, "response.docs.0")
	title := cleanTitle(d.Get("title.0").String())
	if title == "" {
		return nil, fmt.Errorf("ads: %w for %s %s:%s", ErrNoResult, bibstem, volume, page)
	}
	w := &Work{
		Title:     title,
		DOI:       doi.Normalize(d.Get("doi.0").String()),
		Container: d.Get("pub").String(),
		Volume:    d.Get("volume").String(),
		Page:      d.Get("page.0").String(),
		Source:    "ads",
	}
	if bibcode := d.Get("bibcode").String(); bibcode != "" {
		w.URL = "https://ui.adsabs.harvard.edu/abs/" + bibcode
	}
	return w, nil
}
