// Package notion stores harvested links as pages in a Notion database.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/matsen/linkharvest/internal/httpclient"
	"github.com/matsen/linkharvest/internal/identity"
	"github.com/matsen/linkharvest/internal/record"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	APIVersion     = "2022-06-28"
)

// ErrMissingCredentials is returned when the token or database id is empty.
var ErrMissingCredentials = errors.New("NOTION_TOKEN and NOTION_DATABASE_ID are required for the notion store")

// Properties names the database columns.
type Properties struct {
	Title    string `mapstructure:"title" yaml:"title"`
	URL      string `mapstructure:"url" yaml:"url"`
	SharedBy string `mapstructure:"shared_by" yaml:"shared_by"`
	SharedOn string `mapstructure:"shared_on" yaml:"shared_on"`
}

// DefaultProperties are the column names of the reading-list template.
func DefaultProperties() Properties {
	return Properties{
		Title:    "Article Name",
		URL:      "URL or Permalink",
		SharedBy: "Shared by",
		SharedOn: "Shared on",
	}
}

// withDefaults fills empty names.
func (p Properties) withDefaults() Properties {
	d := DefaultProperties()
	if p.Title == "" {
		p.Title = d.Title
	}
	if p.URL == "" {
		p.URL = d.URL
	}
	if p.SharedBy == "" {
		p.SharedBy = d.SharedBy
	}
	if p.SharedOn == "" {
		p.SharedOn = d.SharedOn
	}
	return p
}

// Store implements identity.Store against one database.
type Store struct {
	token    string
	database string
	baseURL  string
	props    Properties
	http     *httpclient.Client
	log      zerolog.Logger
}

var _ identity.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(s *Store) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

// WithProperties sets the column names. Empty names keep their defaults.
func WithProperties(p Properties) Option {
	return func(s *Store) {
		s.props = p.withDefaults()
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// New creates a Store.
func New(token, databaseID string, hc *httpclient.Client, opts ...Option) (*Store, error) {
	if token == "" || databaseID == "" {
		return nil, ErrMissingCredentials
	}
	if hc == nil {
		hc = httpclient.New()
	}
	s := &Store{
		token:    token,
		database: databaseID,
		baseURL:  DefaultBaseURL,
		props:    DefaultProperties(),
		http:     hc,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Find queries the database for the first page matching f.
func (s *Store) Find(ctx context.Context, f identity.Filter) (string, error) {
	var prop, kind string
	switch f.Field {
	case identity.FieldURL:
		prop, kind = s.props.URL, "url"
	case identity.FieldTitle:
		prop, kind = s.props.Title, "title"
	default:
		return "", fmt.Errorf("unsupported field %q", f.Field)
	}

	body := map[string]any{
		"filter": map[string]any{
			"property": prop,
			kind:       map[string]any{string(f.Op): f.Value},
		},
		"page_size": 1,
	}
	data, err := s.send(ctx, http.MethodPost, "/databases/"+s.database+"/query", body)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(data, "results.0.id").String()
	if id == "" {
		return "", identity.ErrNotFound
	}
	return id, nil
}

// Create adds a page and returns its id.
func (s *Store) Create(ctx context.Context, e record.Entry) (string, error) {
	body := map[string]any{
		"parent":     map[string]any{"database_id": s.database},
		"properties": s.properties(e),
	}
	data, err := s.send(ctx, http.MethodPost, "/pages", body)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(data, "id").String()
	if id == "" {
		return "", fmt.Errorf("notion create: response has no page id")
	}
	return id, nil
}

// Update overwrites the page's properties.
func (s *Store) Update(ctx context.Context, ref string, e record.Entry) error {
	_, err := s.send(ctx, http.MethodPatch, "/pages/"+ref, map[string]any{"properties": s.properties(e)})
	return err
}

func (s *Store) properties(e record.Entry) map[string]any {
	text := func(v string) []any {
		return []any{map[string]any{"text": map[string]any{"content": v}}}
	}
	return map[string]any{
		s.props.Title:    map[string]any{"title": text(e.Title)},
		s.props.URL:      map[string]any{"url": e.URL},
		s.props.SharedBy: map[string]any{"rich_text": text(e.SharedBy)},
		s.props.SharedOn: map[string]any{"date": map[string]any{"start": e.SharedAtISO()}},
	}
}

func (s *Store) send(ctx context.Context, method, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(ctx, req)
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			if msg := gjson.GetBytes(se.Body, "message").String(); msg != "" {
				return nil, fmt.Errorf("notion %s %s: %d: %s", method, path, se.StatusCode, msg)
			}
		}
		return nil, fmt.Errorf("notion %s %s: %w", method, path, err)
	}
	return resp.Body, nil
}
