// Package testutil provides shared test helpers for stores and managers.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/bloc/internal/notes"
	"github.com/starford/bloc/internal/store"
)

// Logger returns a logger that only prints errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestStore opens a store in a temp directory that is closed on cleanup.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "bloc-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestManager returns a bootstrapped manager over a fresh TestStore. The
// collection starts with its single default note.
func TestManager(t *testing.T, opts ...notes.Option) (*notes.Manager, *store.DB) {
	t.Helper()
	db := TestStore(t)
	opts = append([]notes.Option{notes.WithLogger(Logger())}, opts...)
	m := notes.NewManager(db, opts...)
	if _, err := m.Bootstrap(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m, db
}
