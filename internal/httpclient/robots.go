package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
)

// robotsCache holds the parsed robots.txt group per scheme+host for one run.
type robotsCache struct {
	groups map[string]*robotstxt.Group
}

func newRobotsCache() *robotsCache {
	return &robotsCache{groups: make(map[string]*robotstxt.Group)}
}

// Allowed reports whether robots.txt permits fetching rawURL. It is always
// true when robots checks are disabled, and when robots.txt cannot be read.
func (c *Client) Allowed(ctx context.Context, rawURL string) bool {
	if c.robots == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	origin := u.Scheme + "://" + u.Host
	group, ok := c.robots.groups[origin]
	if !ok {
		group = c.loadRobots(ctx, origin)
		c.robots.groups[origin] = group
	}
	if group == nil {
		return true
	}

	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (c *Client) loadRobots(ctx context.Context, origin string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}

	status := http.StatusOK
	var body []byte
	resp, err := c.do(ctx, req, 512<<10, false)
	if err != nil {
		var se *StatusError
		if !errors.As(err, &se) {
			c.log.Debug().Err(err).Str("origin", origin).Msg("robots.txt unavailable")
			return nil
		}
		if se.StatusCode >= 500 {
			return nil
		}
		status = se.StatusCode
	} else {
		body = resp.Body
	}

	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		c.log.Debug().Err(err).Str("origin", origin).Msg("parsing robots.txt")
		return nil
	}
	return data.FindGroup(RobotsAgent)
}
