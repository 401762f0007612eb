package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/bloc/internal/apperr"
	"github.com/starford/bloc/internal/durability"
	"github.com/starford/bloc/internal/legacy"
	"github.com/starford/bloc/internal/models"
	"github.com/starford/bloc/internal/notes"
	"github.com/starford/bloc/internal/store"
)

// core is the persistence stack shared by every entrypoint.
type core struct {
	db      *store.DB // nil when the store could not be opened
	policy  *durability.Policy
	notes   *notes.Manager
	storeID string
	focus   models.Note
}

// openCore brings the collection up in startup order: open the store,
// negotiate durability, migrate the legacy slot, load, and make sure one
// note exists. Storage failures degrade to an in-memory session.
func openCore(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...notes.Option) *core {
	c := &core{}

	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("startup: create storage dir failed", slog.String("dir", dir), slog.String("error", err.Error()))
		}
	}

	var backing notes.Store
	db, err := store.Open(ctx, cfg.Storage.Path)
	if err != nil {
		logger.Error("startup: store unavailable, running in memory",
			slog.String("path", cfg.Storage.Path),
			slog.String("error", err.Error()))
		backing = offlineStore{cause: err}
	} else {
		c.db = db
		backing = db
		if id, idErr := db.StoreID(ctx); idErr == nil {
			c.storeID = id
		}
	}

	c.policy = durability.NewPolicy(durability.NewPathHost(cfg.Storage.Path), logger)
	if c.db != nil {
		c.policy.Negotiate(ctx)
	}

	var migrator notes.Migrator
	if cfg.Legacy.Dir != "" && c.db != nil {
		slots, slotErr := legacy.NewFS(cfg.Legacy.Dir)
		if slotErr != nil {
			logger.Warn("startup: legacy slots unavailable", slog.String("dir", cfg.Legacy.Dir), slog.String("error", slotErr.Error()))
		} else {
			migrator = legacy.NewMigrator(slots, c.db, cfg.Legacy.Key, logger)
		}
	}

	opts = append([]notes.Option{notes.WithLogger(logger), notes.WithDebounce(cfg.Storage.Debounce)}, opts...)
	c.notes = notes.NewManager(backing, opts...)

	focus, err := c.notes.Bootstrap(ctx, migrator)
	if err != nil {
		logger.Warn("startup: degraded", slog.String("error", err.Error()))
	}
	c.focus = focus
	logger.Info("startup: ready",
		slog.Int64("focus_id", focus.ID),
		slog.String("durability", c.policy.Status().Indicator()),
		slog.String("store_id", c.storeID))
	return c
}

// close flushes pending edits and releases the store.
func (c *core) close(ctx context.Context) error {
	err := c.notes.Close(ctx)
	if c.db != nil {
		err = errors.Join(err, c.db.Close())
	}
	return err
}

// offlineStore stands in for a store that could not be opened.
type offlineStore struct {
	cause error
}

func (s offlineStore) SaveAll(context.Context, []models.Note) error {
	return fmt.Errorf("%w: %w", apperr.ErrWriteFailed, s.cause)
}

func (s offlineStore) LoadAll(context.Context) ([]models.Note, error) {
	return nil, fmt.Errorf("%w: %w", apperr.ErrReadFailed, s.cause)
}
