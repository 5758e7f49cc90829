package main

import (
	"context"

	"github.com/matsen/linkharvest/internal/config"
	"github.com/matsen/linkharvest/internal/httpclient"
	"github.com/matsen/linkharvest/internal/identity"
	"github.com/matsen/linkharvest/internal/mongostore"
	"github.com/matsen/linkharvest/internal/notion"
	"github.com/matsen/linkharvest/internal/storage"
)

// openStore opens the configured destination. The returned close function
// is never nil.
func openStore(ctx context.Context, cfg *config.Config, p *pipeline) (identity.Store, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		db, err := storage.OpenDB(cfg.SQLitePath)
		if err != nil {
			return nil, func() {}, err
		}
		return db, func() { db.Close() }, nil

	case config.StoreMongo:
		s, err := mongostore.Open(ctx, mongostore.Config{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return s, func() { s.Close() }, nil

	default:
		// API client: no robots.txt, default user agent.
		hc := httpclient.New(
			httpclient.WithTimeout(cfg.Timeout),
			httpclient.WithRetries(cfg.MaxRetries),
			httpclient.WithLogger(p.log),
		)
		s, err := notion.New(cfg.NotionToken, cfg.NotionDatabaseID, hc,
			notion.WithProperties(notion.Properties{
				Title:    cfg.NotionProperties.Title,
				URL:      cfg.NotionProperties.URL,
				SharedBy: cfg.NotionProperties.SharedBy,
				SharedOn: cfg.NotionProperties.SharedOn,
			}),
			notion.WithLogger(p.log),
		)
		if err != nil {
			return nil, func() {}, err
		}
		return s, func() {}, nil
	}
}
