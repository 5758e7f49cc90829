// Package biblio queries bibliographic metadata services (Crossref,
// OpenAlex, bioRxiv, arXiv and NASA ADS) by DOI or by free-text and
// structured queries.
package biblio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/matsen/linkharvest/internal/canon"
	"github.com/matsen/linkharvest/internal/doi"
	"github.com/matsen/linkharvest/internal/heuristics"
	"github.com/matsen/linkharvest/internal/httpclient"
)

const (
	CrossrefBaseURL = "https://api.crossref.org"
	OpenAlexBaseURL = "https://api.openalex.org"
	BiorxivBaseURL  = "https://api.biorxiv.org"
	ArxivBaseURL    = "https://export.arxiv.org/api"
	ADSBaseURL      = "https://api.adsabs.harvard.edu/v1"

	// RateLimit is requests per second across all services. Crossref asks
	// polite-pool clients to stay well under 50/s.
	RateLimit = 5.0

	// SearchRows is how many candidates a free-text search considers.
	SearchRows = 5
)

// Work is one bibliographic record.
type Work struct {
	Title     string `json:"title"`
	DOI       string `json:"doi,omitempty"`
	URL       string `json:"url,omitempty"` // publisher landing page when known
	Container string `json:"container,omitempty"`
	Volume    string `json:"volume,omitempty"`
	Issue     string `json:"issue,omitempty"`
	Page      string `json:"page,omitempty"`
	Source    string `json:"source"`
}

// Client is a rate-limited client for the bibliographic services.
type Client struct {
	http     *httpclient.Client
	limiter  *rate.Limiter
	mailto   string
	adsToken string
	log      zerolog.Logger

	crossrefURL string
	openAlexURL string
	biorxivURL  string
	arxivURL    string
	adsURL      string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMailto sets the contact address sent to Crossref and OpenAlex.
func WithMailto(email string) ClientOption {
	return func(c *Client) {
		c.mailto = email
	}
}

// WithADSToken sets the NASA ADS API token.
func WithADSToken(token string) ClientOption {
	return func(c *Client) {
		c.adsToken = token
	}
}

// WithRateLimit sets the shared request rate per second.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithCrossrefURL sets a custom Crossref base URL (for testing).
func WithCrossrefURL(u string) ClientOption {
	return func(c *Client) { c.crossrefURL = strings.TrimRight(u, "/") }
}

// WithOpenAlexURL sets a custom OpenAlex base URL (for testing).
func WithOpenAlexURL(u string) ClientOption {
	return func(c *Client) { c.openAlexURL = strings.TrimRight(u, "/") }
}

// WithBiorxivURL sets a custom bioRxiv API base URL (for testing).
func WithBiorxivURL(u string) ClientOption {
	return func(c *Client) { c.biorxivURL = strings.TrimRight(u, "/") }
}

// WithArxivURL sets a custom arXiv API base URL (for testing).
func WithArxivURL(u string) ClientOption {
	return func(c *Client) { c.arxivURL = strings.TrimRight(u, "/") }
}

// WithADSURL sets a custom ADS base URL (for testing).
func WithADSURL(u string) ClientOption {
	return func(c *Client) { c.adsURL = strings.TrimRight(u, "/") }
}

// NewClient creates a Client on top of the shared HTTP client.
func NewClient(hc *httpclient.Client, opts ...ClientOption) *Client {
	c := &Client{
		http:        hc,
		limiter:     rate.NewLimiter(rate.Limit(RateLimit), 1),
		log:         zerolog.Nop(),
		crossrefURL: CrossrefBaseURL,
		openAlexURL: OpenAlexBaseURL,
		biorxivURL:  BiorxivBaseURL,
		arxivURL:    ArxivBaseURL,
		adsURL:      ADSBaseURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// LookupDOI resolves a DOI to a work. bioRxiv and arXiv DOIs go to their
// own servers first; every DOI then falls through Crossref and OpenAlex.
func (c *Client) LookupDOI(ctx context.Context, d string) (*Work, error) {
	d = doi.Normalize(d)
	if !doi.Valid(d) {
		return nil, fmt.Errorf("%w: invalid DOI %q", ErrNoResult, d)
	}

	type lookup func(context.Context, string) (*Work, error)
	var chain []lookup
	if strings.HasPrefix(d, "10.1101/") {
		chain = append(chain, c.Biorxiv)
	}
	if id, ok := arxivIDFromDOI(d); ok {
		chain = append(chain, func(ctx context.Context, _ string) (*Work, error) {
			return c.ArXiv(ctx, id)
		})
	}
	chain = append(chain, c.CrossrefDOI, c.OpenAlexDOI)

	var errs []error
	for _, fn := range chain {
		w, err := fn(ctx, d)
		if err == nil && w.Title != "" {
			if w.DOI == "" {
				w.DOI = d
			}
			return w, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, err)
		}
	}
	return nil, fmt.Errorf("%w for DOI %s: %w", ErrNoResult, d, errors.Join(errs...))
}

// TitleForDOI returns only the title of LookupDOI.
func (c *Client) TitleForDOI(ctx context.Context, d string) (string, error) {
	w, err := c.LookupDOI(ctx, d)
	if err != nil {
		return "", err
	}
	return w.Title, nil
}

// Search runs a free-text query against Crossref, then OpenAlex, preferring
// a result hosted on preferHost.
func (c *Client) Search(ctx context.Context, query, preferHost string) (*Work, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrNoResult)
	}

	var errs []error
	for _, search := range []func(context.Context, string) ([]Work, error){c.CrossrefSearch, c.OpenAlexSearch} {
		works, err := search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		if w := pickCandidate(works, preferHost); w != nil {
			return w, nil
		}
	}
	return nil, fmt.Errorf("%w for query %q: %w", ErrNoResult, query, errors.Join(errs...))
}

// get performs a rate-limited GET and returns the body.
func (c *Client) get(ctx context.Context, service, rawURL string, header http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.http.Get(ctx, rawURL, header)
	if err != nil {
		c.log.Debug().Err(err).Str("service", service).Str("url", rawURL).Msg("bibliographic request failed")
		return nil, wrapHTTPError(service, err)
	}
	return resp.Body, nil
}

// withMailto adds the polite-pool contact parameter when configured.
func (c *Client) withMailto(params url.Values) url.Values {
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}
	return params
}

// pickCandidate returns the first titled work on preferHost, else the first
// titled work.
func pickCandidate(works []Work, preferHost string) *Work {
	preferHost = strings.TrimPrefix(strings.ToLower(preferHost), "www.")
	var first *Work
	for i := range works {
		w := &works[i]
		if w.Title == "" {
			continue
		}
		if first == nil {
			first = w
		}
		if preferHost != "" && canon.HostIn(canon.Host(w.URL), preferHost) {
			return w
		}
	}
	return first
}

var markupTag = regexp.MustCompile(`<[^>]+>`)

// cleanTitle strips inline markup (JATS <i>, <sub>, MathML) that Crossref
// and bioRxiv embed in titles.
func cleanTitle(s string) string {
	return heuristics.CleanTitle(markupTag.ReplaceAllString(s, " "))
}

// escapeDOI escapes each path segment of a DOI for use in a URL path.
func escapeDOI(d string) string {
	parts := strings.Split(d, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
