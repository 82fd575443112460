// Package postgres implements the record repository on PostgreSQL with pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool. It is constructed explicitly in
// main and injected; there is no package-level singleton.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new PostgreSQL connection pool and verifies connectivity.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate creates the records table and its full-text index if they do not
// exist. search_tsv is a generated column over title and content; dropping
// it (or the GIN index) degrades the service to vector-only search rather
// than breaking it.
func (db *DB) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS records (
	id          UUID PRIMARY KEY,
	record_id   TEXT NOT NULL UNIQUE,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	feel        TEXT[] NOT NULL DEFAULT '{}',
	date        TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ,
	deleted_at  TIMESTAMPTZ,
	search_tsv  TSVECTOR GENERATED ALWAYS AS (
		to_tsvector('simple', coalesce(title, '') || ' ' || coalesce(content, ''))
	) STORED
);
CREATE INDEX IF NOT EXISTS idx_records_user ON records (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_search ON records USING GIN (search_tsv);
`
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
