// Package mongostore keeps harvested links in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matsen/linkharvest/internal/identity"
	"github.com/matsen/linkharvest/internal/record"
)

const (
	DefaultDatabase   = "linkharvest"
	DefaultCollection = "links"
)

const connectTimeout = 10 * time.Second

// Config selects the server and collection.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// Link is the stored document.
type Link struct {
	ID        string    `bson:"_id"`
	URL       string    `bson:"url"`
	Title     string    `bson:"title"`
	SharedBy  string    `bson:"shared_by,omitempty"`
	SharedAt  time.Time `bson:"shared_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Store implements identity.Store on a collection with a unique url index.
type Store struct {
	client *mongo.Client
	links  *mongo.Collection
}

var _ identity.Store = (*Store)(nil)

// Open connects, pings and ensures the indexes exist.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo_uri is required for the mongo store")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	s := &Store{
		client: client,
		links:  client.Database(cfg.Database).Collection(cfg.Collection),
	}
	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("creating indexes: %w", err)
	}
	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.links.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "title", Value: 1}}},
	})
	return err
}

// Close disconnects from the server.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Find returns the id of the first link matching f.
func (s *Store) Find(ctx context.Context, f identity.Filter) (string, error) {
	filter, err := filterDoc(f)
	if err != nil {
		return "", err
	}

	var l Link
	err = s.links.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", identity.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying links: %w", err)
	}
	return l.ID, nil
}

// Create inserts a link and returns its id.
func (s *Store) Create(ctx context.Context, e record.Entry) (string, error) {
	l := newLink(uuid.NewString(), e)
	if _, err := s.links.InsertOne(ctx, l); err != nil {
		return "", fmt.Errorf("inserting link: %w", err)
	}
	return l.ID, nil
}

// Update overwrites the link with the given id.
func (s *Store) Update(ctx context.Context, id string, e record.Entry) error {
	l := newLink(id, e)
	res, err := s.links.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"url":        l.URL,
		"title":      l.Title,
		"shared_by":  l.SharedBy,
		"shared_at":  l.SharedAt,
		"updated_at": l.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("updating link: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("link %s: %w", id, identity.ErrNotFound)
	}
	return nil
}

// Get returns the link with the given id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Link, error) {
	var l Link
	err := s.links.FindOne(ctx, bson.M{"_id": id}).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func newLink(id string, e record.Entry) Link {
	return Link{
		ID:        id,
		URL:       e.URL,
		Title:     e.Title,
		SharedBy:  e.SharedBy,
		SharedAt:  e.SharedAt.UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

// filterDoc translates a store filter into a query document.
func filterDoc(f identity.Filter) (bson.M, error) {
	var field string
	switch f.Field {
	case identity.FieldURL:
		field = "url"
	case identity.FieldTitle:
		field = "title"
	default:
		return nil, fmt.Errorf("unsupported field %q", f.Field)
	}

	switch f.Op {
	case identity.OpEquals:
		return bson.M{field: f.Value}, nil
	case identity.OpContains:
		return bson.M{field: bson.M{"$regex": regexp.QuoteMeta(f.Value), "$options": "i"}}, nil
	default:
		return nil, fmt.Errorf("unsupported op %q", f.Op)
	}
}
