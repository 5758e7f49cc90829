package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/matsen/linkharvest/internal/identity"
	"github.com/matsen/linkharvest/internal/record"
)

// DB wraps a SQLite database of harvested links.
type DB struct {
	db *sql.DB
}

var _ identity.Store = (*DB)(nil)

// Link is a stored entry with its bookkeeping columns.
type Link struct {
	ID        string    `json:"id"`
	record.Entry
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const selectLinkFields = `id, url, title, shared_by, shared_at, created_at, updated_at`

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS links (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			shared_by TEXT,
			shared_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_links_title ON links(title);

		-- Full-text index over titles (standalone, kept in sync on write)
		CREATE VIRTUAL TABLE IF NOT EXISTS links_fts USING fts5(
			id UNINDEXED,
			title
		);
	`

	_, err := db.Exec(schema)
	return err
}

// Find returns the id of the first link matching f.
func (d *DB) Find(ctx context.Context, f identity.Filter) (string, error) {
	var col string
	switch f.Field {
	case identity.FieldURL:
		col = "url"
	case identity.FieldTitle:
		col = "title"
	default:
		return "", fmt.Errorf("unsupported field %q", f.Field)
	}

	var where string
	switch f.Op {
	case identity.OpEquals:
		where = col + " = ?"
	case identity.OpContains:
		// DOIs in URLs keep their publisher's case.
		where = "instr(lower(" + col + "), lower(?)) > 0"
	default:
		return "", fmt.Errorf("unsupported op %q", f.Op)
	}

	var id string
	err := d.db.QueryRowContext(ctx,
		`SELECT id FROM links WHERE `+where+` ORDER BY created_at LIMIT 1`, f.Value).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", identity.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying links: %w", err)
	}
	return id, nil
}

// Create inserts a link and returns its new id.
func (d *DB) Create(ctx context.Context, e record.Entry) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Unix()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO links (id, url, title, shared_by, shared_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, e.URL, e.Title, nullableStringValue(e.SharedBy), e.SharedAt.UTC().Unix(), now, now); err != nil {
		return "", fmt.Errorf("inserting link: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO links_fts (id, title) VALUES (?, ?)`, id, e.Title); err != nil {
		return "", fmt.Errorf("indexing link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	return id, nil
}

// Update overwrites the link with the given id.
func (d *DB) Update(ctx context.Context, id string, e record.Entry) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE links SET url = ?, title = ?, shared_by = ?, shared_at = ?, updated_at = ?
		WHERE id = ?`,
		e.URL, e.Title, nullableStringValue(e.SharedBy), e.SharedAt.UTC().Unix(), time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("updating link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("link %s: %w", id, identity.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM links_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO links_fts (id, title) VALUES (?, ?)`, id, e.Title); err != nil {
		return fmt.Errorf("indexing link: %w", err)
	}

	return tx.Commit()
}

// GetByID retrieves a link by id, or nil when absent.
func (d *DB) GetByID(ctx context.Context, id string) (*Link, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectLinkFields+` FROM links WHERE id = ?`, id)
	return scanLink(row)
}

// Search performs a full-text search over titles. A limit <= 0 returns all
// matches.
func (d *DB) Search(ctx context.Context, query string, limit int) ([]Link, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+selectLinkFields+`
		FROM links
		WHERE id IN (SELECT id FROM links_fts WHERE links_fts MATCH ?)
		ORDER BY shared_at DESC
		LIMIT ?`, prepareFTSQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanLinks(rows)
}

// ListAll returns links newest-shared first. A limit <= 0 returns all.
func (d *DB) ListAll(ctx context.Context, limit int) ([]Link, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx, `SELECT `+selectLinkFields+` FROM links ORDER BY shared_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	defer rows.Close()

	return scanLinks(rows)
}

// Count returns the number of stored links.
func (d *DB) Count(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM links").Scan(&count)
	return count, err
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLink(s scanner) (*Link, error) {
	var l Link
	var sharedBy sql.NullString
	var sharedAt, createdAt, updatedAt int64

	err := s.Scan(&l.ID, &l.URL, &l.Title, &sharedBy, &sharedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	l.SharedBy = sharedBy.String
	l.SharedAt = time.Unix(sharedAt, 0).UTC()
	l.CreatedAt = time.Unix(createdAt, 0).UTC()
	l.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &l, nil
}

func scanLinks(rows *sql.Rows) ([]Link, error) {
	var links []Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		if l != nil {
			links = append(links, *l)
		}
	}
	return links, rows.Err()
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	if strings.ContainsAny(query, "\"*+-:(){}[]^~.,/") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
