package biblio

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/matsen/linkharvest/internal/doi"
)

// biorxivServers are tried in order; medRxiv shares the 10.1101 prefix.
var biorxivServers = []string{"biorxiv", "medrxiv"}

// Biorxiv fetches details/{server}/{doi} and returns the latest version.
func (c *Client) Biorxiv(ctx context.Context, d string) (*Work, error) {
	var lastErr error
	for _, server := range biorxivServers {
		body, err := c.get(ctx, "biorxiv", c.biorxivURL+"/details/"+server+"/"+escapeDOI(d), nil)
		if err != nil {
			lastErr = err
			continue
		}
		if !gjson.ValidBytes(body) {
			lastErr = fmt.Errorf("biorxiv: %w", ErrInvalidResponse)
			continue
		}
		coll := gjson.GetBytes(body, "collection").Array()
		if len(coll) == 0 {
			lastErr = fmt.Errorf("%s: %w for %s", server, ErrNoResult, d)
			continue
		}
		latest := coll[len(coll)-1]
		title := cleanTitle(latest.Get("title").String())
		if title == "" {
			lastErr = fmt.Errorf("%s: %w for %s", server, ErrNoResult, d)
			continue
		}
		return &Work{
			Title:     title,
			DOI:       doi.Normalize(latest.Get("doi").String()),
			URL:       "https://www." + server + ".org/content/" + d,
			Container: latest.Get("server").String(),
			Source:    server,
		}, nil
	}
	return nil, lastErr
}
