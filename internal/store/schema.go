// Package store provides the SQLite-backed Storage Engine for the note collection.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/bloc/internal/apperr"
)

// SchemaVersion is the only store format in existence.
const SchemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id            INTEGER PRIMARY KEY,
	title         TEXT NOT NULL,
	content       TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	last_modified TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_last_modified ON notes(last_modified);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// DB wraps a sql.DB holding the note collection.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the store at dsn. Opening is idempotent: the schema
// is created on first use and left alone afterwards.
func Open(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

// migrate creates the schema when the file carries no version yet.
func migrate(ctx context.Context, conn *sql.DB) error {
	var version int
	if err := conn.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("store: read schema version: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	switch {
	case version == SchemaVersion:
		return nil
	case version > SchemaVersion:
		return fmt.Errorf("store: schema version %d is newer than supported %d: %w",
			version, SchemaVersion, apperr.ErrStorageUnavailable)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: apply schema: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('store_id', ?)`, newStoreID()); err != nil {
		return fmt.Errorf("store: write store id: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, SchemaVersion)); err != nil {
		return fmt.Errorf("store: write schema version: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit schema: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// newStoreID generates a UUID v7 identifying this store file.
func newStoreID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
