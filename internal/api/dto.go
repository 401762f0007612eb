package api

import "github.com/starford/bloc/internal/models"

// NoteListResponse wraps the collection.
type NoteListResponse struct {
	Notes []models.Note `json:"notes"`
	Total int           `json:"total"`
}

// UpdateContentRequest is the body of PUT /notes/{id}/content.
// Content is a pointer so an explicit empty string is distinguishable from a
// missing field.
type UpdateContentRequest struct {
	Content *string `json:"content"`
}

// UpdateTitleRequest is the body of PUT /notes/{id}/title.
type UpdateTitleRequest struct {
	Title *string `json:"title"`
}

// SelectionRequest carries the ids for delete and export.
type SelectionRequest struct {
	IDs []int64 `json:"ids"`
}

// StorageResponse describes the durability state shown by the indicator.
type StorageResponse struct {
	Status    string `json:"status"`
	Indicator string `json:"indicator"`
	Durable   bool   `json:"durable"`
	StoreID   string `json:"storeId,omitempty"`
}
