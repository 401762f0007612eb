// Package codec converts the note collection to and from its portable JSON
// form: a pretty-printed array of {id, title, content, createdAt, lastModified}.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/bloc/internal/apperr"
	"github.com/starford/bloc/internal/models"
)

// Export is a serialized selection ready to be offered as a download.
type Export struct {
	Filename string
	Data     []byte
	Count    int
}

// Draft is a decoded import element awaiting an id.
type Draft struct {
	Title        string
	Content      string
	CreatedAt    time.Time
	LastModified time.Time
}

// wireNote mirrors one array element. Pointers distinguish absent fields.
// The id stays raw: imports renumber, so only DecodeCollection reads it.
type wireNote struct {
	ID           json.RawMessage `json:"id"`
	Title        *string         `json:"title"`
	Content      *string         `json:"content"`
	CreatedAt    *string         `json:"createdAt"`
	LastModified *string         `json:"lastModified"`
}

// Filename returns the suggested export filename for the given instant.
func Filename(now time.Time) string {
	return "notes-export-" + now.UTC().Format("2006-01-02") + ".json"
}

// Encode serializes the notes of collection whose id is in ids, keeping
// collection order.
func Encode(collection []models.Note, ids models.IDSet, now time.Time) (Export, error) {
	if len(ids) == 0 {
		return Export{}, apperr.ErrNoSelection
	}
	selected := make([]models.Note, 0, len(ids))
	for _, n := range collection {
		if ids.Has(n.ID) {
			selected = append(selected, n)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(selected); err != nil {
		return Export{}, fmt.Errorf("codec: encode: %w", err)
	}
	return Export{
		Filename: Filename(now),
		Data:     buf.Bytes(),
		Count:    len(selected),
	}, nil
}

// DecodeImport parses an import payload. Nothing is returned unless every
// element decodes. Missing titles become the imported-note placeholder,
// missing content becomes empty and missing timestamps become now.
func DecodeImport(data []byte, now time.Time) ([]Draft, error) {
	elems, err := splitArray(data)
	if err != nil {
		return nil, err
	}
	drafts := make([]Draft, 0, len(elems))
	for i, raw := range elems {
		w, err := decodeElement(raw, i)
		if err != nil {
			return nil, err
		}
		d, err := w.draft(now, models.ImportedTitle, false)
		if err != nil {
			return nil, fmt.Errorf("codec: element %d: %w", i, err)
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// DecodeCollection parses a serialized collection keeping the stored ids.
// Rows written before lastModified existed fall back to createdAt.
func DecodeCollection(data []byte, now time.Time) ([]models.Note, error) {
	elems, err := splitArray(data)
	if err != nil {
		return nil, err
	}
	notes := make([]models.Note, 0, len(elems))
	for i, raw := range elems {
		w, err := decodeElement(raw, i)
		if err != nil {
			return nil, err
		}
		id, err := w.id()
		if err != nil {
			return nil, fmt.Errorf("codec: element %d: %w", i, err)
		}
		d, err := w.draft(now, models.UntitledTitle, true)
		if err != nil {
			return nil, fmt.Errorf("codec: element %d: %w", i, err)
		}
		notes = append(notes, models.Note{
			ID:           id,
			Title:        d.Title,
			Content:      d.Content,
			CreatedAt:    d.CreatedAt,
			LastModified: d.LastModified,
		})
	}
	return notes, nil
}

// splitArray validates the payload and returns its top-level elements.
func splitArray(data []byte) ([]json.RawMessage, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("codec: %w", apperr.ErrParse)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("codec: %w", apperr.ErrInvalidFormat)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, fmt.Errorf("codec: %w: %w", apperr.ErrInvalidFormat, err)
	}
	return elems, nil
}

func decodeElement(raw json.RawMessage, i int) (wireNote, error) {
	var w wireNote
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return w, fmt.Errorf("codec: element %d is not an object: %w", i, apperr.ErrInvalidFormat)
	}
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return w, fmt.Errorf("codec: element %d: %w: %w", i, apperr.ErrInvalidFormat, err)
	}
	return w, nil
}

func (w wireNote) id() (int64, error) {
	if len(w.ID) == 0 || string(w.ID) == "null" {
		return 0, fmt.Errorf("missing id: %w", apperr.ErrInvalidFormat)
	}
	var id int64
	if err := json.Unmarshal(w.ID, &id); err != nil {
		return 0, fmt.Errorf("id %s: %w", w.ID, apperr.ErrInvalidFormat)
	}
	return id, nil
}

// draft applies defaults. With inheritCreated, a missing lastModified takes
// createdAt instead of now. lastModified is never earlier than createdAt.
func (w wireNote) draft(now time.Time, fallbackTitle string, inheritCreated bool) (Draft, error) {
	d := Draft{Title: fallbackTitle}
	if w.Title != nil {
		d.Title = models.TitleOr(*w.Title, fallbackTitle)
	}
	if w.Content != nil {
		d.Content = *w.Content
	}

	created, hasCreated, err := parseTime(w.CreatedAt, "createdAt")
	if err != nil {
		return d, err
	}
	modified, hasModified, err := parseTime(w.LastModified, "lastModified")
	if err != nil {
		return d, err
	}

	switch {
	case hasCreated && hasModified:
	case hasCreated && inheritCreated:
		modified = created
	case hasCreated:
		modified = now
	case hasModified:
		created = now
	default:
		created, modified = now, now
	}
	if modified.Before(created) {
		modified = created
	}
	d.CreatedAt, d.LastModified = created, modified
	return d, nil
}

// parseTime treats an absent or empty string as missing.
func parseTime(s *string, field string) (time.Time, bool, error) {
	if s == nil || *s == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s %q: %w", field, *s, apperr.ErrInvalidFormat)
	}
	return t, true, nil
}
