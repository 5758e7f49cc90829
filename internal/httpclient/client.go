// Package httpclient provides the pooled, retrying HTTP client shared by every
// component that talks to the network.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout bounds a single attempt, body read included.
	DefaultTimeout = 20 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultMaxBody caps how much of a response body is read.
	DefaultMaxBody = 25 << 20

	// DefaultUserAgent identifies the harvester. Several publisher sites
	// reject requests without a browser-like agent.
	DefaultUserAgent = "Mozilla/5.0 (compatible; linkharvest/1.0; +https://github.com/matsen/linkharvest)"

	// RobotsAgent is the agent name matched against robots.txt groups.
	RobotsAgent = "linkharvest"
)

// Client executes requests with per-attempt timeouts and bounded retries.
type Client struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxBody    int64
	robots     *robotsCache
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets the number of retries after the first attempt.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the base and maximum retry delay (tests use tiny values).
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = max
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxBody sets the body size limit in bytes.
func WithMaxBody(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithRobots enables robots.txt checks for page fetches.
func WithRobots(enabled bool) Option {
	return func(c *Client) {
		if enabled {
			c.robots = newRobotsCache()
		} else {
			c.robots = nil
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client with a pooled transport.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("stopped after 10 redirects")
				}
				return nil
			},
		},
		userAgent:  DefaultUserAgent,
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   10 * time.Second,
		maxBody:    DefaultMaxBody,
		log:        zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Response is a fully read HTTP response.
type Response struct {
	URL        string // final URL after redirects
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the lowercased media type without parameters.
func (r *Response) ContentType() string {
	return MediaType(r.Header.Get("Content-Type"))
}

// MediaType parses a Content-Type header value down to its media type.
func MediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		mt, _, _ = strings.Cut(header, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// Get fetches an API resource. Non-2xx responses are returned as *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.Do(ctx, req)
}

// GetPage fetches a web page the way a browser would, honoring robots.txt
// when enabled.
func (c *Client) GetPage(ctx context.Context, rawURL string) (*Response, error) {
	if !c.Allowed(ctx, rawURL) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
	}
	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	header.Set("Accept-Language", "en-US,en;q=0.9")
	return c.Get(ctx, rawURL, header)
}

// Do executes req with retries on network errors, 429 and 5xx responses.
// The body is read inside each attempt so the per-attempt timeout covers it.
// req.GetBody must be set for requests with a body (http.NewRequest does
// this for bytes and strings readers).
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	return c.do(ctx, req, c.maxBody, true)
}

func (c *Client) do(ctx context.Context, req *http.Request, limit int64, strict bool) (*Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt, lastErr)
			c.log.Debug().
				Str("url", req.URL.String()).
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("retrying request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.attempt(ctx, req, limit, strict)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, c.maxRetries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, req *http.Request, limit int64, strict bool) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r := req.Clone(attemptCtx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		r.Body = body
	}

	resp, err := c.httpClient.Do(r)
	if err != nil {
		return nil, &networkError{err: err}
	}
	defer resp.Body.Close()

	var body []byte
	if r.Method != http.MethodHead {
		body, err = io.ReadAll(io.LimitReader(resp.Body, limit+1))
		if err != nil {
			return nil, &networkError{err: fmt.Errorf("reading body: %w", err)}
		}
		if int64(len(body)) > limit {
			if strict {
				return nil, fmt.Errorf("%s: %w", req.URL, ErrTooLarge)
			}
			body = body[:limit]
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     r.Method,
			StatusCode: resp.StatusCode,
			URL:        req.URL.String(),
			Body:       bytes.Clone(body),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	finalURL := req.URL.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		URL:        finalURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// backoff returns the exponential delay with jitter for the given attempt,
// stretched to a server-provided Retry-After when that is longer.
func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	delay := c.baseDelay << (attempt - 1)
	if delay > c.maxDelay || delay <= 0 {
		delay = c.maxDelay
	}
	if half := int64(delay / 2); half > 0 {
		delay = time.Duration(half + rand.Int64N(half+1))
	}

	var se *StatusError
	if errors.As(lastErr, &se) && se.retryAfter > delay {
		delay = min(se.retryAfter, c.maxDelay)
	}
	return delay
}

// networkError marks transport-level failures as retryable.
type networkError struct {
	err error
}

func (e *networkError) Error() string { return e.err.Error() }
func (e *networkError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var ne *networkError
	if errors.As(err, &ne) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return transient(se.StatusCode)
	}
	return false
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
