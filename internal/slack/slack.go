// Package slack reads channel history, thread replies, permalinks, user
// names and uploaded files from the Slack Web API.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/matsen/linkharvest/internal/httpclient"
)

// DefaultBaseURL is the Slack Web API root.
const DefaultBaseURL = "https://slack.com/api"

// pageLimit is the page size for history and replies.
const pageLimit = 200

var (
	// ErrMissingToken is returned when no bot token is configured.
	ErrMissingToken = errors.New("SLACK_BOT_TOKEN not set; required for Slack API access")

	// ErrNotInChannel is returned when the bot cannot read the channel.
	ErrNotInChannel = errors.New("bot is not a member of this channel; invite the bot with /invite @bot-name")
)

// APIError is an ok=false answer from the Slack API.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}

// Client provides read access to one Slack workspace.
type Client struct {
	token     string
	baseURL   string
	http      *httpclient.Client
	log       zerolog.Logger
	userCache map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root (tests point it at httptest).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a Client for the given bot token.
func NewClient(token string, hc *httpclient.Client, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if hc == nil {
		hc = httpclient.New()
	}
	c := &Client{
		token:     token,
		baseURL:   DefaultBaseURL,
		http:      hc,
		log:       zerolog.Nop(),
		userCache: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// File is an uploaded file attached to a message.
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Mimetype    string `json:"mimetype"`
	Filetype    string `json:"filetype"`
	URLPrivate  string `json:"url_private"`
	DownloadURL string `json:"url_private_download"`
}

// IsPDF reports whether the file looks like a PDF by mimetype, filetype or
// name.
func (f File) IsPDF() bool {
	name := f.Name
	if name == "" {
		name = f.Title
	}
	return strings.EqualFold(f.Mimetype, "application/pdf") ||
		strings.EqualFold(f.Filetype, "pdf") ||
		strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// URL is the authenticated download URL.
func (f File) URL() string {
	if f.DownloadURL != "" {
		return f.DownloadURL
	}
	return f.URLPrivate
}

// Attachment is a legacy attachment or unfurl.
type Attachment struct {
	FromURL     string `json:"from_url"`
	OriginalURL string `json:"original_url"`
	TitleLink   string `json:"title_link"`
}

// Message is a channel message or thread reply.
type Message struct {
	TS          string          `json:"ts"`
	User        string          `json:"user"`
	BotID       string          `json:"bot_id"`
	SubType     string          `json:"subtype"`
	Text        string          `json:"text"`
	ThreadTS    string          `json:"thread_ts"`
	ReplyCount  int             `json:"reply_count"`
	Files       []File          `json:"files"`
	Attachments []Attachment    `json:"attachments"`
	Blocks      json.RawMessage `json:"blocks"`
}

// Author is the user id, else the bot id.
func (m Message) Author() string {
	if m.User != "" {
		return m.User
	}
	return m.BotID
}

// AttachmentURLs returns the link fields of every attachment.
func (m Message) AttachmentURLs() []string {
	var urls []string
	for _, a := range m.Attachments {
		for _, u := range []string{a.FromURL, a.OriginalURL, a.TitleLink} {
			if u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

// PDFs returns the message's PDF files.
func (m Message) PDFs() []File {
	var out []File
	for _, f := range m.Files {
		if f.IsPDF() {
			out = append(out, f)
		}
	}
	return out
}

// Time parses the message timestamp, falling back to now.
func (m Message) Time() time.Time {
	t, err := ParseTimestamp(m.TS)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

// ParseTimestamp parses a Slack timestamp such as "1737990123.000100".
func ParseTimestamp(ts string) (time.Time, error) {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC(), nil
}

// FormatTimestamp renders t as a Slack "oldest" bound.
func FormatTimestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + ".000000"
}

// apiResponse is the envelope every Web API method shares.
type apiResponse struct {
	OK               bool   `json:"ok"`
	Error            string `json:"error,omitempty"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

type historyResponse struct {
	apiResponse
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

type user struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
	Profile  struct {
		DisplayName string `json:"display_name"`
		RealName    string `json:"real_name"`
	} `json:"profile"`
}

type userInfoResponse struct {
	apiResponse
	User user `json:"user"`
}

type permalinkResponse struct {
	apiResponse
	Permalink string `json:"permalink"`
}

type authTestResponse struct {
	apiResponse
	Team   string `json:"team"`
	User   string `json:"user"`
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
}

type enveloped interface {
	envelope() *apiResponse
}

// call GETs a Web API method and decodes the answer into out.
func (c *Client) call(ctx context.Context, method string, params url.Values, out enveloped) error {
	u := c.baseURL + "/" + method
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	resp, err := c.http.Get(ctx, u, http.Header{"Authorization": {"Bearer " + c.token}})
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", method, err)
	}
	env := out.envelope()
	if !env.OK {
		if env.Error == "channel_not_found" || env.Error == "not_in_channel" {
			return fmt.Errorf("%s: %w", method, ErrNotInChannel)
		}
		return &APIError{Method: method, Code: env.Error}
	}
	return nil
}

func (r *apiResponse) envelope() *apiResponse { return r }

// AuthTest checks the token. A failure here is fatal for a run.
func (c *Client) AuthTest(ctx context.Context) (team, botUser string, err error) {
	var r authTestResponse
	if err := c.call(ctx, "auth.test", nil, &r); err != nil {
		return "", "", err
	}
	return r.Team, r.User, nil
}

// Messages returns the channel history oldest-first. Thread replies follow
// their parent, without repeating it. A zero oldest reads everything.
func (c *Client) Messages(ctx context.Context, channel string, oldest time.Time) ([]Message, error) {
	var top []Message
	cursor := ""
	for {
		params := url.Values{
			"channel": {channel},
			"limit":   {strconv.Itoa(pageLimit)},
		}
		if !oldest.IsZero() {
			params.Set("oldest", FormatTimestamp(oldest))
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var r historyResponse
		if err := c.call(ctx, "conversations.history", params, &r); err != nil {
			return nil, err
		}
		top = append(top, r.Messages...)
		cursor = r.ResponseMetadata.NextCursor
		if cursor == "" {
			break
		}
	}

	// History is newest-first.
	var out []Message
	for i := len(top) - 1; i >= 0; i-- {
		m := top[i]
		out = append(out, m)
		if m.ReplyCount == 0 {
			continue
		}
		thread := m.ThreadTS
		if thread == "" {
			thread = m.TS
		}
		replies, err := c.Replies(ctx, channel, thread)
		if err != nil {
			c.log.Warn().Err(err).Str("thread_ts", thread).Msg("could not read thread replies")
			continue
		}
		out = append(out, replies...)
	}
	return out, nil
}

// Replies returns a thread's replies oldest-first, without the parent.
func (c *Client) Replies(ctx context.Context, channel, threadTS string) ([]Message, error) {
	var out []Message
	cursor := ""
	for {
		params := url.Values{
			"channel": {channel},
			"ts":      {threadTS},
			"limit":   {strconv.Itoa(pageLimit)},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var r historyResponse
		if err := c.call(ctx, "conversations.replies", params, &r); err != nil {
			return nil, err
		}
		for _, m := range r.Messages {
			if m.TS == threadTS {
				continue
			}
			out = append(out, m)
		}
		cursor = r.ResponseMetadata.NextCursor
		if cursor == "" {
			break
		}
	}
	return out, nil
}

// Permalink returns the web link to a message.
func (c *Client) Permalink(ctx context.Context, channel, ts string) (string, error) {
	var r permalinkResponse
	params := url.Values{"channel": {channel}, "message_ts": {ts}}
	if err := c.call(ctx, "chat.getPermalink", params, &r); err != nil {
		return "", err
	}
	return r.Permalink, nil
}

// DisplayName resolves who shared a message: display name, then real name,
// then the id itself. Ids that are not user ids belong to bots.
func (c *Client) DisplayName(ctx context.Context, id string) string {
	if id == "" {
		return "Unknown"
	}
	if !strings.HasPrefix(id, "U") && !strings.HasPrefix(id, "W") {
		return "Bot"
	}
	if name, ok := c.userCache[id]; ok {
		return name
	}

	name := id
	var r userInfoResponse
	if err := c.call(ctx, "users.info", url.Values{"user": {id}}, &r); err != nil {
		c.log.Debug().Err(err).Str("user", id).Msg("users.info failed")
	} else {
		for _, n := range []string{r.User.Profile.DisplayName, r.User.Profile.RealName, r.User.RealName} {
			if n != "" {
				name = n
				break
			}
		}
	}
	c.userCache[id] = name
	return name
}

// Download fetches a private file with the bot token.
func (c *Client) Download(ctx context.Context, fileURL string) ([]byte, error) {
	if fileURL == "" {
		return nil, errors.New("file has no download URL")
	}
	resp, err := c.http.Get(ctx, fileURL, http.Header{"Authorization": {"Bearer " + c.token}})
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	return resp.Body, nil
}
