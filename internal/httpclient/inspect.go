package httpclient

import (
	"context"
	"fmt"
	"net/http"
)

// inspectBodyLimit is how much of a ranged GET body is kept when the server
// ignores the Range header.
const inspectBodyLimit = 4096

// InspectResult describes what a URL serves without downloading it.
type InspectResult struct {
	URL         string `json:"url"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Method      string `json:"method"`
}

// Inspect issues a HEAD request and falls back to a one-byte ranged GET when
// HEAD fails or is refused, which many publisher CDNs do.
func (c *Client) Inspect(ctx context.Context, rawURL string) (*InspectResult, error) {
	if result, err := c.inspect(ctx, http.MethodHead, rawURL); err == nil {
		return result, nil
	}

	result, err := c.inspect(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", rawURL, err)
	}
	return result, nil
}

func (c *Client) inspect(ctx context.Context, method, rawURL string) (*InspectResult, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	label := method
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
		label = "GET (Range)"
	}

	resp, err := c.do(ctx, req, inspectBodyLimit, false)
	if err != nil {
		return nil, err
	}
	return &InspectResult{
		URL:         resp.URL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType(),
		Method:      label,
	}, nil
}
