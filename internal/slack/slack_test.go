package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/linkharvest/internal/httpclient"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc := httpclient.New(httpclient.WithRetries(0))
	c, err := NewClient("xoxb-test", hc, WithBaseURL(srv.URL))
	require.NoError(t, err)
	return c, srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient("", nil)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestMessagesOrderAndThreads(t *testing.T) {
	var historyCalls int
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/conversations.history":
			historyCalls++
			if r.URL.Query().Get("cursor") == "" {
				writeJSON(w, map[string]any{
					"ok": true,
					"messages": []map[string]any{
						{"ts": "300.0", "text": "third"},
						{"ts": "200.0", "text": "second", "thread_ts": "200.0", "reply_count": 2},
					},
					"response_metadata": map[string]any{"next_cursor": "page2"},
				})
				return
			}
			writeJSON(w, map[string]any{
				"ok":       true,
				"messages": []map[string]any{{"ts": "100.0", "text": "first"}},
			})
		case "/conversations.replies":
			assert.Equal(t, "200.0", r.URL.Query().Get("ts"))
			writeJSON(w, map[string]any{
				"ok": true,
				"messages": []map[string]any{
					{"ts": "200.0", "text": "second"},
					{"ts": "210.0", "text": "reply a"},
					{"ts": "220.0", "text": "reply b"},
				},
			})
		default:
			http.NotFound(w, r)
		}
	})

	msgs, err := c.Messages(context.Background(), "C1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, historyCalls)

	var texts []string
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"first", "second", "reply a", "reply b", "third"}, texts)
}

func TestMessagesOldest(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1700000000.000000", r.URL.Query().Get("oldest"))
		writeJSON(w, map[string]any{"ok": true, "messages": []any{}})
	})
	msgs, err := c.Messages(context.Background(), "C1", time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMessagesNotInChannel(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": false, "error": "not_in_channel"})
	})
	_, err := c.Messages(context.Background(), "C1", time.Time{})
	assert.ErrorIs(t, err, ErrNotInChannel)
}

func TestAuthTest(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth.test", r.URL.Path)
			writeJSON(w, map[string]any{"ok": true, "team": "Lab", "user": "harvester"})
		})
		team, user, err := c.AuthTest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Lab", team)
		assert.Equal(t, "harvester", user)
	})

	t.Run("invalid auth", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"ok": false, "error": "invalid_auth"})
		})
		_, _, err := c.AuthTest(context.Background())
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "invalid_auth", apiErr.Code)
	})
}

func TestPermalink(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.getPermalink", r.URL.Path)
		assert.Equal(t, "123.456", r.URL.Query().Get("message_ts"))
		writeJSON(w, map[string]any{"ok": true, "permalink": "https://lab.slack.com/archives/C1/p123456"})
	})
	link, err := c.Permalink(context.Background(), "C1", "123.456")
	require.NoError(t, err)
	assert.Equal(t, "https://lab.slack.com/archives/C1/p123456", link)
}

func TestDisplayName(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch r.URL.Query().Get("user") {
		case "U1":
			writeJSON(w, map[string]any{"ok": true, "user": map[string]any{
				"id": "U1", "profile": map[string]any{"display_name": "ada"},
			}})
		case "W2":
			writeJSON(w, map[string]any{"ok": true, "user": map[string]any{
				"id": "W2", "real_name": "Grace Hopper", "profile": map[string]any{},
			}})
		default:
			writeJSON(w, map[string]any{"ok": false, "error": "user_not_found"})
		}
	})
	ctx := context.Background()

	assert.Equal(t, "ada", c.DisplayName(ctx, "U1"))
	assert.Equal(t, "ada", c.DisplayName(ctx, "U1"))
	assert.Equal(t, "Grace Hopper", c.DisplayName(ctx, "W2"))
	assert.Equal(t, "U404", c.DisplayName(ctx, "U404"))
	assert.Equal(t, "Bot", c.DisplayName(ctx, "B123"))
	assert.Equal(t, "Unknown", c.DisplayName(ctx, ""))
	assert.Equal(t, 3, calls, "names are cached per client")
}

func TestDownload(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 body"))
	})
	data, err := c.Download(context.Background(), srv.URL+"/files/paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))

	_, err = c.Download(context.Background(), "")
	assert.Error(t, err)
}

func TestFileIsPDF(t *testing.T) {
	tests := []struct {
		name string
		file File
		want bool
	}{
		{"mimetype", File{Mimetype: "application/pdf"}, true},
		{"filetype", File{Filetype: "PDF"}, true},
		{"name", File{Name: "Paper.PDF"}, true},
		{"title fallback", File{Title: "draft.pdf"}, true},
		{"image", File{Name: "fig.png", Mimetype: "image/png", Filetype: "png"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.file.IsPDF())
		})
	}
}

func TestMessageHelpers(t *testing.T) {
	m := Message{
		BotID: "B1",
		Attachments: []Attachment{
			{FromURL: "https://a.org/x", TitleLink: "https://a.org/y"},
			{OriginalURL: "https://b.org/z"},
		},
		Files: []File{{Name: "a.pdf"}, {Name: "b.png"}},
	}
	assert.Equal(t, "B1", m.Author())
	assert.Equal(t, []string{"https://a.org/x", "https://a.org/y", "https://b.org/z"}, m.AttachmentURLs())
	require.Len(t, m.PDFs(), 1)
	assert.Equal(t, "a.pdf", m.PDFs()[0].Name)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("1737990123.000100")
	require.NoError(t, err)
	assert.Equal(t, int64(1737990123), ts.Unix())

	_, err = ParseTimestamp("not-a-ts")
	assert.Error(t, err)
}
