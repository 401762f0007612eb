package api

import (
	"context"

	"github.com/starford/bloc/internal/codec"
	"github.com/starford/bloc/internal/durability"
	"github.com/starford/bloc/internal/models"
	"github.com/starford/bloc/internal/notes"
)

// Collection is the subset of the note manager the API drives.
type Collection interface {
	List() []models.Note
	Get(id int64) (models.Note, bool)
	CreateNote(ctx context.Context) models.Note
	UpdateContent(id int64, content string) (models.Note, bool)
	UpdateTitle(id int64, title string) (models.Note, bool)
	DeleteNotes(ctx context.Context, ids models.IDSet) error
	Import(ctx context.Context, data []byte) (notes.ImportSummary, error)
	Export(ids models.IDSet) (codec.Export, error)
	Durable() bool
	Recover(ctx context.Context) error
}

var _ Collection = (*notes.Manager)(nil)

// StatusSource reports the negotiated durability outcome.
type StatusSource interface {
	Status() durability.Status
}

var _ StatusSource = (*durability.Policy)(nil)
