package notes

import (
	"log/slog"
	"time"
)

// DefaultDebounce is the autosave quiet period for title and content edits.
const DefaultDebounce = 500 * time.Millisecond

// Event kinds delivered to an EventFunc.
const (
	EventCreated   = "note.created"
	EventUpdated   = "note.updated"
	EventDeleted   = "note.deleted"
	EventImported  = "notes.imported"
	EventRecovered = "notes.recovered"
)

// EventFunc is called after a mutation of the in-memory collection.
type EventFunc func(kind string, ids []int64)

// NoticeFunc receives storage failures that were absorbed so the session
// could continue in memory.
type NoticeFunc func(err error)

// Option is a functional option for configuring the Manager.
type Option func(*Manager)

// WithDebounce sets the autosave quiet period.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithEvents registers a change listener.
func WithEvents(fn EventFunc) Option {
	return func(m *Manager) {
		m.onEvent = fn
	}
}

// WithNotices registers a storage failure listener.
func WithNotices(fn NoticeFunc) Option {
	return func(m *Manager) {
		m.onNotice = fn
	}
}
