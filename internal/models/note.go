// Package models defines the domain types for bloc.
package models

import (
	"strings"
	"time"
)

// Placeholder titles.
const (
	UntitledTitle = "Untitled"
	ImportedTitle = "Imported note"
)

// Note is a single rich-text section. Content is opaque markup.
type Note struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// Touch sets LastModified to now, never earlier than CreatedAt.
func (n *Note) Touch(now time.Time) {
	if now.Before(n.CreatedAt) {
		now = n.CreatedAt
	}
	n.LastModified = now
}

// TitleOr returns title, or fallback when title is blank.
func TitleOr(title, fallback string) string {
	if strings.TrimSpace(title) == "" {
		return fallback
	}
	return title
}

// IDSet is a selection of note ids.
type IDSet map[int64]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}
