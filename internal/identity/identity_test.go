package identity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/linkharvest/internal/record"
)

// memStore is an in-memory Store.
type memStore struct {
	entries map[string]record.Entry
	queries []Filter
	updated []string
	findErr error
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]record.Entry)}
}

func (m *memStore) Find(_ context.Context, f Filter) (string, error) {
	m.queries = append(m.queries, f)
	if m.findErr != nil {
		return "", m.findErr
	}
	for ref, e := range m.entries {
		v := e.URL
		if f.Field == FieldTitle {
			v = e.Title
		}
		if f.Op == OpEquals && v == f.Value || f.Op == OpContains && strings.Contains(v, f.Value) {
			return ref, nil
		}
	}
	return "", ErrNotFound
}

func (m *memStore) Create(_ context.Context, e record.Entry) (string, error) {
	m.nextID++
	ref := "ref-" + string(rune('0'+m.nextID))
	m.entries[ref] = e
	return ref, nil
}

func (m *memStore) Update(_ context.Context, ref string, e record.Entry) error {
	m.updated = append(m.updated, ref)
	m.entries[ref] = e
	return nil
}

func TestKeyFor(t *testing.T) {
	a := record.ResolvedRecord{URL: "https://doi.org/10.1101/x.1", DOI: "10.1101/X.1", Title: "One"}
	b := record.ResolvedRecord{URL: "https://www.biorxiv.org/content/10.1101/x.1", DOI: "https://doi.org/10.1101/x.1", Title: "Other"}
	assert.Equal(t, Key("doi:10.1101/x.1"), KeyFor(a))
	assert.Equal(t, KeyFor(a), KeyFor(b), "same DOI gives the same key")

	c := record.ResolvedRecord{Title: "  Ｄeep\tLearning  FOR Genomics "}
	assert.Equal(t, Key("title:deep learning for genomics"), KeyFor(c))
}

func TestKeyForFallbackTitles(t *testing.T) {
	tests := []struct {
		name string
		rec  record.ResolvedRecord
		want Key
	}{
		{
			name: "placeholder",
			rec:  record.ResolvedRecord{URL: "https://www.nature.com/articles/1234567", Title: "Untitled (nature.com)", Source: record.SourcePlaceholder},
			want: "url:https://www.nature.com/articles/1234567",
		},
		{
			name: "inferred from url",
			rec:  record.ResolvedRecord{URL: "https://example.org/blog/some-post", Title: "Some Post", Source: record.SourceInferred},
			want: "url:https://example.org/blog/some-post",
		},
		{
			name: "chat file name",
			rec:  record.ResolvedRecord{URL: "https://lab.slack.com/archives/C1/p1", Title: "main", Source: record.SourceFileName},
			want: "url:https://lab.slack.com/archives/C1/p1",
		},
		{
			name: "empty title",
			rec:  record.ResolvedRecord{URL: "https://example.org/x", Source: "meta"},
			want: "url:https://example.org/x",
		},
		{
			name: "doi beats fallback",
			rec:  record.ResolvedRecord{URL: "https://example.org/x", DOI: "10.1000/ABC", Title: "main", Source: record.SourceFileName},
			want: "doi:10.1000/abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyFor(tt.rec))
		})
	}

	a := record.ResolvedRecord{URL: "https://www.nature.com/articles/1234567", Title: "Untitled (nature.com)", Source: record.SourcePlaceholder}
	b := record.ResolvedRecord{URL: "https://www.nature.com/articles/7654321", Title: "Untitled (nature.com)", Source: record.SourcePlaceholder}
	assert.NotEqual(t, KeyFor(a), KeyFor(b), "unrelated works sharing a placeholder stay distinct")
}

func TestSeen(t *testing.T) {
	seen := NewSeen()
	k := KeyFor(record.ResolvedRecord{DOI: "10.1000/abc"})
	assert.False(t, seen.Has(k))
	seen.Add(k)
	assert.True(t, seen.Has(k))
	assert.False(t, seen.Has(Key("title:other")))
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	rec := record.ResolvedRecord{URL: "https://example.org/paper", Title: "A paper"}
	e := record.Entry{URL: rec.URL, Title: rec.Title, SharedBy: "Ada"}

	ref, created, err := Upsert(ctx, s, rec, e)
	require.NoError(t, err)
	assert.True(t, created)

	e.SharedBy = "Grace"
	ref2, created, err := Upsert(ctx, s, rec, e)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, ref, ref2)
	assert.Equal(t, "Grace", s.entries[ref].SharedBy)
}

func TestUpsertMatchesDOIInURL(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	s.entries["old"] = record.Entry{URL: "https://doi.org/10.1038/s41586-020-2649-2", Title: "Old title"}

	rec := record.ResolvedRecord{URL: "https://www.nature.com/articles/s41586-020-2649-2", DOI: "10.1038/S41586-020-2649-2", Title: "Array programming with NumPy"}
	ref, created, err := Upsert(ctx, s, rec, record.Entry{URL: rec.URL, Title: rec.Title})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "old", ref)
	assert.Equal(t, []Filter{
		{Field: FieldURL, Op: OpEquals, Value: rec.URL},
		{Field: FieldURL, Op: OpContains, Value: "10.1038/s41586-020-2649-2"},
	}, s.queries)
}

func TestUpsertMatchesTitle(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	s.entries["t"] = record.Entry{URL: "https://mirror.example.com/x", Title: "Same title"}

	rec := record.ResolvedRecord{URL: "https://example.org/x", Title: "Same title"}
	ref, created, err := Upsert(ctx, s, rec, record.Entry{URL: rec.URL, Title: rec.Title})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "t", ref)
	assert.Len(t, s.queries, 2, "no DOI query without a DOI")
}

func TestUpsertStoreFailure(t *testing.T) {
	s := newMemStore()
	s.findErr = errors.New("boom")
	_, _, err := Upsert(context.Background(), s, record.ResolvedRecord{URL: "u"}, record.Entry{URL: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Empty(t, s.entries)
}

func TestUpsertFallbackTitleNotMatched(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	s.entries["first"] = record.Entry{URL: "https://www.nature.com/articles/1234567", Title: "Untitled (nature.com)"}

	rec := record.ResolvedRecord{URL: "https://www.nature.com/articles/7654321", Title: "Untitled (nature.com)", Source: record.SourcePlaceholder}
	ref, created, err := Upsert(ctx, s, rec, record.Entry{URL: rec.URL, Title: rec.Title})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "first", ref)
	assert.Equal(t, "https://www.nature.com/articles/1234567", s.entries["first"].URL, "first entry untouched")
	assert.Equal(t, []Filter{{Field: FieldURL, Op: OpEquals, Value: rec.URL}}, s.queries)
}
