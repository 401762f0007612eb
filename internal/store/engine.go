package store

import (
	"context"

	"github.com/starford/bloc/internal/models"
)

// Engine is the durable side of the note collection. Every save replaces the
// whole persisted set; a failed save leaves the previous set intact.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Engine interface {
	SaveAll(ctx context.Context, notes []models.Note) error
	LoadAll(ctx context.Context) ([]models.Note, error)
	Close() error
}

// Verify *DB satisfies Engine at compile time.
var _ Engine = (*DB)(nil)
