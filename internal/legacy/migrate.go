package legacy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/bloc/internal/apperr"
	"github.com/starford/bloc/internal/codec"
	"github.com/starford/bloc/internal/models"
)

// Saver is the part of the storage engine the migration writes through.
type Saver interface {
	SaveAll(ctx context.Context, notes []models.Note) error
}

// Migrator moves a serialized collection from a legacy slot into the store.
type Migrator struct {
	slots  Slots
	saver  Saver
	key    string
	logger *slog.Logger
	now    func() time.Time
}

// NewMigrator creates a migrator for the given slot key. An empty key
// selects DefaultKey.
func NewMigrator(slots Slots, saver Saver, key string, logger *slog.Logger) *Migrator {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{slots: slots, saver: saver, key: key, logger: logger, now: time.Now}
}

// MigrateOnce moves the legacy collection, if any, into the store and then
// deletes the slot. It returns nil notes when there was nothing to migrate.
//
// The slot is removed only after a confirmed write. On a parse or write
// failure the slot is left in place for a later retry or manual recovery.
// An empty legacy collection removes the slot without touching the store.
func (m *Migrator) MigrateOnce(ctx context.Context) ([]models.Note, error) {
	data, ok, err := m.slots.Get(m.key)
	if err != nil {
		return nil, fmt.Errorf("legacy: read slot: %w: %w", apperr.ErrReadFailed, err)
	}
	if !ok {
		return nil, nil
	}

	notes, err := codec.DecodeCollection(data, m.now())
	if err != nil {
		return nil, fmt.Errorf("legacy: slot %q: %w: %w", m.key, apperr.ErrMigrationParse, err)
	}

	if len(notes) > 0 {
		if err := m.saver.SaveAll(ctx, notes); err != nil {
			return nil, fmt.Errorf("legacy: save migrated notes: %w", err)
		}
	}

	if err := m.slots.Remove(m.key); err != nil {
		return notes, fmt.Errorf("legacy: remove slot after migration: %w: %w", apperr.ErrWriteFailed, err)
	}

	m.logger.Info("legacy: migration complete",
		slog.String("key", m.key),
		slog.Int("notes", len(notes)))
	return notes, nil
}
