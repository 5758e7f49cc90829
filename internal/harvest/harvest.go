// Package harvest runs the end-to-end pass over a chat channel: extract and
// filter links, resolve titles, dedupe and upsert into a destination store.
package harvest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/matsen/linkharvest/internal/canon"
	"github.com/matsen/linkharvest/internal/httpclient"
	"github.com/matsen/linkharvest/internal/identity"
	"github.com/matsen/linkharvest/internal/record"
	"github.com/matsen/linkharvest/internal/resolve"
	"github.com/matsen/linkharvest/internal/slack"
	"github.com/matsen/linkharvest/internal/storage"
)

// Chat is the message source.
type Chat interface {
	Messages(ctx context.Context, channel string, oldest time.Time) ([]slack.Message, error)
	Permalink(ctx context.Context, channel, ts string) (string, error)
	DisplayName(ctx context.Context, id string) string
	Download(ctx context.Context, fileURL string) ([]byte, error)
}

// Inspector checks what a URL serves before it is resolved.
type Inspector interface {
	Inspect(ctx context.Context, rawURL string) (*httpclient.InspectResult, error)
}

// Resolver turns links and uploaded PDFs into records.
type Resolver interface {
	Resolve(ctx context.Context, req resolve.Request) record.ResolvedRecord
	ResolveChatPDF(ctx context.Context, data []byte, permalink, fileTitle, fileName string) record.ResolvedRecord
}

// Options selects what a run reads and whether it writes.
type Options struct {
	Channel string
	Oldest  time.Time // zero reads the whole history
	DryRun  bool
}

// Stats counts what a run did.
type Stats struct {
	RunID      string `json:"run_id"`
	Messages   int    `json:"messages"`
	Links      int    `json:"links"`
	Filtered   int    `json:"filtered"`
	PDFs       int    `json:"pdfs"`
	Duplicates int    `json:"duplicates"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"` // dry run
	Failed     int    `json:"failed"`
}

// Runner wires the pipeline. Runs are sequential.
type Runner struct {
	chat      Chat
	resolver  Resolver
	store     identity.Store
	inspector Inspector
	filter    *canon.Filter
	journal   string
	log       zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithInspector enables the content-type check.
func WithInspector(p Inspector) Option {
	return func(r *Runner) {
		r.inspector = p
	}
}

// WithFilter replaces the scholarly filter.
func WithFilter(f *canon.Filter) Option {
	return func(r *Runner) {
		if f != nil {
			r.filter = f
		}
	}
}

// WithJournal appends one JSONL line per emitted record to path.
func WithJournal(path string) Option {
	return func(r *Runner) {
		r.journal = path
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// New creates a Runner. store may be nil for dry runs.
func New(chat Chat, resolver Resolver, store identity.Store, opts ...Option) *Runner {
	r := &Runner{
		chat:     chat,
		resolver: resolver,
		store:    store,
		filter:   canon.DefaultFilter(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run is the state of one pass.
type run struct {
	*Runner
	opts  Options
	stats *Stats
	seen  identity.Seen
	log   zerolog.Logger
}

// Run processes the channel oldest-first. Per-record failures are logged
// and counted; only reading the history can fail the run.
func (r *Runner) Run(ctx context.Context, opts Options) (*Stats, error) {
	stats := &Stats{RunID: uuid.NewString()}
	rn := &run{
		Runner: r,
		opts:   opts,
		stats:  stats,
		seen:   identity.NewSeen(),
		log:    r.log.With().Str("run_id", stats.RunID).Logger(),
	}

	msgs, err := r.chat.Messages(ctx, opts.Channel, opts.Oldest)
	if err != nil {
		return stats, err
	}
	rn.log.Info().Int("messages", len(msgs)).Str("channel", opts.Channel).Msg("harvesting")

	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Messages++
		rn.message(ctx, m)
	}

	rn.log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("duplicates", stats.Duplicates).
		Int("failed", stats.Failed).
		Msg("harvest complete")
	return stats, nil
}

func (rn *run) message(ctx context.Context, m slack.Message) {
	sharedBy := rn.chat.DisplayName(ctx, m.Author())
	sharedAt := m.Time()

	for _, u := range rn.candidates(ctx, m) {
		rec := rn.resolver.Resolve(ctx, u)
		rn.emit(ctx, rec, sharedBy, sharedAt)
	}

	if pdfs := m.PDFs(); len(pdfs) > 0 {
		rn.stats.PDFs++
		rn.chatPDF(ctx, m, pdfs[0], sharedBy, sharedAt)
	}
}

// candidates returns the message's distinct canonical links that pass the
// filter and the content-type check.
func (rn *run) candidates(ctx context.Context, m slack.Message) []resolve.Request {
	var out []resolve.Request
	seen := make(map[string]bool)
	for _, raw := range canon.Extract(m.Text, m.AttachmentURLs(), m.Blocks) {
		u, ok := canon.Canonicalize(raw.URL)
		if !ok || seen[u] {
			continue
		}
		seen[u] = true
		rn.stats.Links++

		if !rn.filter.IsScholarly(u) {
			rn.stats.Filtered++
			rn.log.Debug().Str("url", u).Msg("not scholarly")
			continue
		}

		req := resolve.Request{URL: u}
		if rn.inspector != nil {
			res, err := rn.inspector.Inspect(ctx, u)
			if err != nil {
				rn.log.Debug().Err(err).Str("url", u).Msg("inspect failed")
			} else {
				req.ContentType = res.ContentType
			}
			if canon.IsMediaType(req.ContentType) {
				rn.stats.Filtered++
				rn.log.Debug().Str("url", u).Str("content_type", req.ContentType).Msg("media link")
				continue
			}
		}
		out = append(out, req)
	}
	return out
}

func (rn *run) chatPDF(ctx context.Context, m slack.Message, f slack.File, sharedBy string, sharedAt time.Time) {
	permalink, err := rn.chat.Permalink(ctx, rn.opts.Channel, m.TS)
	if err != nil || permalink == "" {
		rn.stats.Failed++
		rn.log.Error().Err(err).Str("ts", m.TS).Str("file", f.Name).Msg("no permalink for PDF message")
		return
	}
	if u, ok := canon.Canonicalize(permalink); ok {
		permalink = u
	}

	data, err := rn.chat.Download(ctx, f.URL())
	if err != nil {
		// The file name still makes a usable title.
		rn.log.Warn().Err(err).Str("file", f.Name).Msg("PDF download failed")
	}
	rec := rn.resolver.ResolveChatPDF(ctx, data, permalink, f.Title, f.Name)
	rn.emit(ctx, rec, sharedBy, sharedAt)
}

// emit dedupes rec within the run and upserts it.
func (rn *run) emit(ctx context.Context, rec record.ResolvedRecord, sharedBy string, sharedAt time.Time) {
	key := identity.KeyFor(rec)
	entry := record.NewEntry(rec, sharedBy, sharedAt)
	log := rn.log.With().
		Str("url", rec.URL).
		Str("title", rec.Title).
		Str("doi", rec.DOI).
		Str("source", rec.Source).
		Str("key", string(key)).
		Logger()

	j := storage.JournalEntry{RunID: rn.stats.RunID, Key: string(key), Record: rec, Entry: entry}

	switch {
	case rn.seen.Has(key):
		rn.stats.Duplicates++
		j.Action = storage.ActionDuplicate
		log.Debug().Msg("duplicate in run")

	case rn.opts.DryRun || rn.store == nil:
		rn.seen.Add(key)
		rn.stats.Skipped++
		j.Action = storage.ActionDryRun
		log.Info().Msg("dry run")

	default:
		ref, created, err := identity.Upsert(ctx, rn.store, rec, entry)
		j.Ref = ref
		switch {
		case err != nil:
			rn.stats.Failed++
			j.Action, j.Error = storage.ActionFailed, err.Error()
			log.Error().Err(err).Msg("upsert failed")
		case created:
			rn.seen.Add(key)
			rn.stats.Created++
			j.Action = storage.ActionCreated
			log.Info().Str("ref", ref).Msg("created")
		default:
			rn.seen.Add(key)
			rn.stats.Updated++
			j.Action = storage.ActionUpdated
			log.Info().Str("ref", ref).Msg("updated")
		}
	}

	if rn.journal != "" {
		if err := storage.AppendJournal(rn.journal, j); err != nil {
			rn.log.Warn().Err(err).Str("journal", rn.journal).Msg("could not write journal")
		}
	}
}
