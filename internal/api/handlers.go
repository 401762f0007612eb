package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/bloc/internal/apperr"
	"github.com/starford/bloc/internal/models"
)

const maxBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	notes   Collection
	status  StatusSource
	storeID string
}

// NewHandler creates a new Handler. status may be nil when durability was
// never negotiated.
func NewHandler(notes Collection, status StatusSource, storeID string) *Handler {
	return &Handler{notes: notes, status: status, storeID: storeID}
}

func noteID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// ListNotes handles GET /api/notes. Responses carry an ETag so polling
// clients can revalidate with If-None-Match.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	list := h.notes.List()
	writeTagged(w, r, NoteListResponse{Notes: list, Total: len(list)})
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	note, found := h.notes.Get(id)
	if !found {
		writeError(w, "get note", apperr.ErrNotFound)
		return
	}
	writeTagged(w, r, note)
}

// CreateNote handles POST /api/notes. The server picks id and title.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, h.notes.CreateNote(r.Context()))
}

// UpdateContent handles PUT /api/notes/{id}/content. The save is debounced.
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	var req UpdateContentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Content, validation.NotNil),
	); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	note, found := h.notes.UpdateContent(id, *req.Content)
	if !found {
		writeError(w, "update content", apperr.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// UpdateTitle handles PUT /api/notes/{id}/title. A blank title becomes the
// placeholder.
func (h *Handler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	var req UpdateTitleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Title, validation.NotNil),
	); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	note, found := h.notes.UpdateTitle(id, *req.Title)
	if !found {
		writeError(w, "update title", apperr.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNotes handles POST /api/notes/delete.
func (h *Handler) DeleteNotes(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.notes.DeleteNotes(r.Context(), models.NewIDSet(req.IDs...)); err != nil {
		writeError(w, "delete notes", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles POST /api/export and returns the selection as a download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	exp, err := h.notes.Export(models.NewIDSet(req.IDs...))
	if err != nil {
		writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(exp.Data); err != nil {
		slog.Error("export write failed", slog.String("error", err.Error()))
	}
}

// Import handles POST /api/import. The body is an export file verbatim.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	sum, err := h.notes.Import(r.Context(), data)
	if err != nil {
		writeError(w, "import", err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}

// Storage handles GET /api/storage.
func (h *Handler) Storage(w http.ResponseWriter, r *http.Request) {
	status := "unsupported"
	indicator := "unsupported"
	if h.status != nil {
		s := h.status.Status()
		status, indicator = string(s), s.Indicator()
	}
	writeJSON(w, http.StatusOK, StorageResponse{
		Status:    status,
		Indicator: indicator,
		Durable:   h.notes.Durable(),
		StoreID:   h.storeID,
	})
}

// RecoverStorage handles POST /api/storage/recover. It retries reading the
// store after a failed startup load and reports the resulting state.
func (h *Handler) RecoverStorage(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Recover(r.Context()); err != nil {
		writeError(w, "recover storage", err)
		return
	}
	h.Storage(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}
