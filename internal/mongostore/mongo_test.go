package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/matsen/linkharvest/internal/identity"
	"github.com/matsen/linkharvest/internal/record"
)

func TestFilterDoc(t *testing.T) {
	got, err := filterDoc(identity.Filter{Field: identity.FieldURL, Op: identity.OpEquals, Value: "https://a.org"})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"url": "https://a.org"}, got)

	got, err = filterDoc(identity.Filter{Field: identity.FieldURL, Op: identity.OpContains, Value: "10.1101/2024.01.01"})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"url": bson.M{"$regex": `10\.1101/2024\.01\.01`, "$options": "i"}}, got)

	got, err = filterDoc(identity.Filter{Field: identity.FieldTitle, Op: identity.OpEquals, Value: "A (title)"})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"title": "A (title)"}, got)

	_, err = filterDoc(identity.Filter{Field: "author", Op: identity.OpEquals})
	assert.Error(t, err)
	_, err = filterDoc(identity.Filter{Field: identity.FieldURL, Op: "starts"})
	assert.Error(t, err)
}

func TestNewLink(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	l := newLink("id-1", record.Entry{Title: "T", URL: "https://a.org", SharedBy: "ada", SharedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, loc)})
	assert.Equal(t, "id-1", l.ID)
	assert.Equal(t, time.UTC, l.SharedAt.Location())
	assert.Equal(t, 9, l.SharedAt.Hour())
}

func TestOpenRequiresURI(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

// TestStoreLive runs against a real server when LH_TEST_MONGO_URI is set.
func TestStoreLive(t *testing.T) {
	uri := os.Getenv("LH_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LH_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, Config{URI: uri, Database: "linkharvest_test", Collection: "links_" + uuid.NewString()[:8]})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.links.Drop(context.Background())
		_ = s.Close()
	})

	rec := record.ResolvedRecord{URL: "https://doi.org/10.1038/s41586-020-2649-2", Title: "Array programming with NumPy", DOI: "10.1038/s41586-020-2649-2"}
	ref, created, err := identity.Upsert(ctx, s, rec, record.NewEntry(rec, "ada", time.Now()))
	require.NoError(t, err)
	assert.True(t, created)

	ref2, created, err := identity.Upsert(ctx, s, rec, record.NewEntry(rec, "grace", time.Now()))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, ref, ref2)

	l, err := s.Get(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, "grace", l.SharedBy)

	_, err = s.Find(ctx, identity.Filter{Field: identity.FieldTitle, Op: identity.OpEquals, Value: "missing"})
	assert.ErrorIs(t, err, identity.ErrNotFound)
}
