package store

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/bloc/internal/apperr"
	"github.com/starford/bloc/internal/metrics"
	"github.com/starford/bloc/internal/models"
)

// timeLayout is fixed-width so that text ordering on last_modified matches
// chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveAll replaces the persisted collection with notes in one transaction.
func (db *DB) SaveAll(ctx context.Context, notes []models.Note) (err error) {
	start := time.Now()
	defer func() {
		metrics.StoreSaves.WithLabelValues(metrics.Result(err)).Inc()
		metrics.StoreSaveDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w: %w", apperr.ErrWriteFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return fmt.Errorf("store: clear notes: %w: %w", apperr.ErrWriteFailed, err)
	}

	if len(notes) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO notes (id, title, content, created_at, last_modified)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("store: prepare insert: %w: %w", apperr.ErrWriteFailed, err)
		}
		defer stmt.Close()
		for _, n := range notes {
			if _, err := stmt.ExecContext(ctx, n.ID, n.Title, n.Content,
				n.CreatedAt.UTC().Format(timeLayout), n.LastModified.UTC().Format(timeLayout)); err != nil {
				return fmt.Errorf("store: insert note %d: %w: %w", n.ID, apperr.ErrWriteFailed, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w: %w", apperr.ErrWriteFailed, err)
	}
	return nil
}

// LoadAll returns every persisted note in unspecified order. A store that has
// never been written yields an empty slice.
func (db *DB) LoadAll(ctx context.Context) (out []models.Note, err error) {
	defer func() {
		metrics.StoreLoads.WithLabelValues(metrics.Result(err)).Inc()
	}()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, content, created_at, last_modified FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("store: load all: %w: %w", apperr.ErrReadFailed, err)
	}
	defer rows.Close()

	out = []models.Note{}
	for rows.Next() {
		var (
			n                 models.Note
			created, modified string
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &created, &modified); err != nil {
			return nil, fmt.Errorf("store: scan note: %w: %w", apperr.ErrReadFailed, err)
		}
		if n.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("store: note %d created_at: %w: %w", n.ID, apperr.ErrReadFailed, err)
		}
		if n.LastModified, err = time.Parse(timeLayout, modified); err != nil {
			return nil, fmt.Errorf("store: note %d last_modified: %w: %w", n.ID, apperr.ErrReadFailed, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate notes: %w: %w", apperr.ErrReadFailed, err)
	}
	return out, nil
}

// StoreID returns the identity generated when the store file was created.
func (db *DB) StoreID(ctx context.Context) (string, error) {
	var id string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'store_id'`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("store: store id: %w: %w", apperr.ErrReadFailed, err)
	}
	return id, nil
}
