package biblio

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
)

const arxivDOIPrefix = "10.48550/arxiv."

var arxivID = regexp.MustCompile(`^(\d{4}\.\d{4,5}|[a-z\-]+(\.[A-Z]{2})?/\d{7})(v\d+)?$`)

// ArXiv fetches the Atom entry for an arXiv identifier (new or old style,
// with or without a version suffix).
func (c *Client) ArXiv(ctx context.Context, id string) (*Work, error) {
	id = strings.TrimSpace(id)
	if !arxivID.MatchString(id) {
		return nil, fmt.Errorf("%w: invalid arXiv id %q", ErrNoResult, id)
	}

	params := url.Values{}
	params.Set("id_list", id)
	body, err := c.get(ctx, "arxiv", c.arxivURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("arxiv: %w: %v", ErrInvalidResponse, err)
	}
	for _, item := range feed.Items {
		title := cleanTitle(item.Title)
		// The API reports unknown ids as an entry titled "Error".
		if title == "" || strings.EqualFold(title, "error") {
			continue
		}
		return &Work{
			Title:     title,
			DOI:       arxivDOIPrefix + strings.ToLower(stripVersion(id)),
			URL:       "https://arxiv.org/abs/" + id,
			Container: "arXiv",
			Source:    "arxiv",
		}, nil
	}
	return nil, fmt.Errorf("arxiv: %w for %s", ErrNoResult, id)
}

// IsArXivID reports whether id looks like an arXiv identifier.
func IsArXivID(id string) bool {
	return arxivID.MatchString(id)
}

func arxivIDFromDOI(d string) (string, bool) {
	if !strings.HasPrefix(d, arxivDOIPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(d, arxivDOIPrefix)
	return id, arxivID.MatchString(id)
}

var versionSuffix = regexp.MustCompile(`v\d+$`)

func stripVersion(id string) string {
	return versionSuffix.ReplaceAllString(id, "")
}
