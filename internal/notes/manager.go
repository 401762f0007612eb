// Package notes owns the authoritative in-memory note collection and keeps
// the durable store in step with it.
package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/starford/bloc/internal/apperr"
	"github.com/starford/bloc/internal/codec"
	"github.com/starford/bloc/internal/metrics"
	"github.com/starford/bloc/internal/models"
)

// Store is the durable side of the collection.
type Store interface {
	SaveAll(ctx context.Context, notes []models.Note) error
	LoadAll(ctx context.Context) ([]models.Note, error)
}

// Migrator moves legacy data into the store before the first load.
type Migrator interface {
	MigrateOnce(ctx context.Context) ([]models.Note, error)
}

// ImportSummary describes a completed import.
type ImportSummary struct {
	Count   int   `json:"count"`
	FirstID int64 `json:"firstId"`
}

// Manager is the Note Collection Manager. Creation, deletion and import
// persist immediately; title and content edits are coalesced and persisted
// once the debounce period has passed without further edits.
//
// Storage failures never fail a mutation: they are logged, reported to the
// NoticeFunc and the session continues in memory until a save succeeds.
// If the initial load failed the store is never written until Recover
// succeeds, so rows that could not be read are not replaced.
type Manager struct {
	store    Store
	logger   *slog.Logger
	now      func() time.Time
	debounce time.Duration
	onEvent  EventFunc
	onNotice NoticeFunc

	mu      sync.Mutex
	notes   []models.Note // insertion order
	pending *time.Timer
	gen     uint64 // bumped whenever a pending save is superseded
	closed  bool
	durable bool
	// unread is set while the store contents are unknown; saves are withheld.
	unread bool

	// saveMu orders saves so a later snapshot is never overwritten by an
	// earlier one.
	saveMu sync.Mutex
}

// NewManager creates a manager over store. Call Bootstrap before use.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
		debounce: DefaultDebounce,
		durable:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bootstrap runs the legacy migration (if migrator is non-nil), loads the
// store into memory ordered by id and guarantees at least one note exists.
// It returns the note to focus first. A non-nil error reports storage
// failures that were absorbed; the manager is usable either way.
func (m *Manager) Bootstrap(ctx context.Context, migrator Migrator) (models.Note, error) {
	var errs []error

	if migrator != nil {
		if _, err := migrator.MigrateOnce(ctx); err != nil {
			m.report("startup: legacy migration failed", err)
			errs = append(errs, err)
		}
	}

	loaded, err := m.store.LoadAll(ctx)
	if err != nil {
		m.report("startup: load failed", err)
		errs = append(errs, err)
		loaded = nil
		m.mu.Lock()
		m.unread = true
		m.durable = false
		m.mu.Unlock()
	}
	slices.SortStableFunc(loaded, byID)
	for i := range loaded {
		if loaded[i].LastModified.Before(loaded[i].CreatedAt) {
			loaded[i].LastModified = loaded[i].CreatedAt
		}
	}

	m.mu.Lock()
	m.notes = loaded
	empty := len(m.notes) == 0
	var first models.Note
	if !empty {
		first = m.notes[0]
	}
	metrics.NotesCount.Set(float64(len(m.notes)))
	m.mu.Unlock()

	m.logger.Info("notes: collection loaded", slog.Int("notes", len(loaded)))

	if empty {
		first = m.CreateNote(ctx)
	}
	return first, errors.Join(errs...)
}

// CreateNote appends a fresh note titled "<YYYY-MM-DD> note <n>" and
// persists immediately.
func (m *Manager) CreateNote(ctx context.Context) models.Note {
	m.mu.Lock()
	now := m.now()
	id := now.UnixMilli()
	for m.indexLocked(id) >= 0 {
		id++
	}

	day := now.Format("2006-01-02")
	n := 1
	for _, existing := range m.notes {
		if strings.HasPrefix(existing.Title, day) {
			n++
		}
	}

	note := models.Note{
		ID:           id,
		Title:        fmt.Sprintf("%s note %d", day, n),
		CreatedAt:    now,
		LastModified: now,
	}
	m.notes = append(m.notes, note)
	metrics.NotesCount.Set(float64(len(m.notes)))
	m.mu.Unlock()

	m.persist(ctx)
	m.emit(EventCreated, note.ID)
	return note
}

// UpdateContent replaces the content of note id and schedules a debounced
// save. It reports whether the note exists; an unknown id is a no-op.
func (m *Manager) UpdateContent(id int64, content string) (models.Note, bool) {
	return m.update(id, func(n *models.Note) { n.Content = content })
}

// UpdateTitle renames note id, substituting the placeholder for a blank
// title, and schedules a debounced save.
func (m *Manager) UpdateTitle(id int64, title string) (models.Note, bool) {
	title = models.TitleOr(title, models.UntitledTitle)
	return m.update(id, func(n *models.Note) { n.Title = title })
}

func (m *Manager) update(id int64, apply func(*models.Note)) (models.Note, bool) {
	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return models.Note{}, false
	}
	apply(&m.notes[i])
	m.notes[i].Touch(m.now())
	note := m.notes[i]
	m.scheduleLocked()
	m.mu.Unlock()

	m.emit(EventUpdated, id)
	return note, true
}

// DeleteNotes removes every note whose id is in ids and persists
// immediately. Removing the whole collection is refused.
func (m *Manager) DeleteNotes(ctx context.Context, ids models.IDSet) error {
	if len(ids) == 0 {
		return apperr.ErrNoSelection
	}

	m.mu.Lock()
	kept := make([]models.Note, 0, len(m.notes))
	var removed []int64
	for _, n := range m.notes {
		if ids.Has(n.ID) {
			removed = append(removed, n.ID)
			continue
		}
		kept = append(kept, n)
	}
	if len(kept) == 0 {
		m.mu.Unlock()
		return apperr.ErrWouldEmptyCollection
	}
	if len(removed) == 0 {
		m.mu.Unlock()
		return nil
	}
	m.notes = kept
	metrics.NotesCount.Set(float64(len(m.notes)))
	m.mu.Unlock()

	m.persist(ctx)
	m.emit(EventDeleted, removed...)
	return nil
}

// Import decodes data and appends every element with a fresh id above the
// current maximum, in input order. A payload that fails to decode leaves the
// collection untouched.
func (m *Manager) Import(ctx context.Context, data []byte) (ImportSummary, error) {
	drafts, err := codec.DecodeImport(data, m.now())
	if err != nil {
		return ImportSummary{}, err
	}
	if len(drafts) == 0 {
		return ImportSummary{}, nil
	}

	m.mu.Lock()
	var maxID int64
	for _, n := range m.notes {
		maxID = max(maxID, n.ID)
	}
	ids := make([]int64, 0, len(drafts))
	for _, d := range drafts {
		maxID++
		m.notes = append(m.notes, models.Note{
			ID:           maxID,
			Title:        d.Title,
			Content:      d.Content,
			CreatedAt:    d.CreatedAt,
			LastModified: d.LastModified,
		})
		ids = append(ids, maxID)
	}
	metrics.NotesCount.Set(float64(len(m.notes)))
	m.mu.Unlock()

	m.persist(ctx)
	m.emit(EventImported, ids...)
	m.logger.Info("notes: imported", slog.Int("count", len(ids)), slog.Int64("first_id", ids[0]))
	return ImportSummary{Count: len(ids), FirstID: ids[0]}, nil
}

// Export serializes the selected notes.
func (m *Manager) Export(ids models.IDSet) (codec.Export, error) {
	return codec.Encode(m.List(), ids, m.now())
}

// List returns a snapshot of the collection in insertion order.
func (m *Manager) List() []models.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.notes)
}

// Get returns note id.
func (m *Manager) Get(id int64) (models.Note, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(id); i >= 0 {
		return m.notes[i], true
	}
	return models.Note{}, false
}

// Recover retries the load after a failed Bootstrap. On success the stored
// notes and the notes of this session are merged, session edits winning on
// id clashes, and the result is saved. It is a no-op once the store has been
// read.
func (m *Manager) Recover(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	unread := m.unread
	m.mu.Unlock()
	if !unread {
		return nil
	}

	loaded, err := m.store.LoadAll(ctx)
	if err != nil {
		m.report("notes: recovery load failed", err)
		return err
	}

	m.mu.Lock()
	merged := make([]models.Note, 0, len(loaded)+len(m.notes))
	for _, n := range loaded {
		if m.indexLocked(n.ID) < 0 {
			merged = append(merged, n)
		}
	}
	slices.SortStableFunc(merged, byID)
	m.notes = append(merged, m.notes...)
	m.unread = false
	metrics.NotesCount.Set(float64(len(m.notes)))
	m.mu.Unlock()

	m.logger.Info("notes: store recovered", slog.Int("stored", len(loaded)))
	m.emit(EventRecovered)
	return m.saveLocked(ctx)
}

// Durable reports whether the last save attempt succeeded.
func (m *Manager) Durable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.durable
}

// Flush persists a pending debounced save right away and waits for a save
// already in flight. It returns the save error, if any, in addition to
// reporting it.
func (m *Manager) Flush(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	hasPending := m.pending != nil
	m.mu.Unlock()
	if !hasPending {
		return nil
	}
	return m.saveLocked(ctx)
}

// Close flushes pending edits and stops accepting debounced saves.
func (m *Manager) Close(ctx context.Context) error {
	err := m.Flush(ctx)
	m.mu.Lock()
	m.closed = true
	m.cancelPendingLocked()
	m.mu.Unlock()
	return err
}

// scheduleLocked (re)arms the single debounce timer.
func (m *Manager) scheduleLocked() {
	metrics.DebouncedMutations.Inc()
	if m.closed {
		return
	}
	m.cancelPendingLocked()
	gen := m.gen
	m.pending = time.AfterFunc(m.debounce, func() { m.fire(gen) })
}

// cancelPendingLocked stops the timer and invalidates a callback that may
// already be running.
func (m *Manager) cancelPendingLocked() {
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	m.gen++
}

// fire runs a debounced save. The generation is checked under saveMu so a
// callback queued behind Flush or Close does not write afterwards.
func (m *Manager) fire(gen uint64) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	stale := gen != m.gen || m.closed
	m.mu.Unlock()
	if stale {
		return
	}
	_ = m.saveLocked(context.Background())
}

func (m *Manager) persist(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	return m.saveLocked(ctx)
}

// saveLocked writes the current snapshot; saveMu must be held. Any pending
// debounced save is superseded because the snapshot already contains its
// edits.
func (m *Manager) saveLocked(ctx context.Context) error {
	m.mu.Lock()
	m.cancelPendingLocked()
	snapshot := slices.Clone(m.notes)
	unread := m.unread
	if unread {
		m.durable = false
	}
	m.mu.Unlock()

	if unread {
		m.logger.Debug("notes: save withheld until the store is readable", slog.Int("notes", len(snapshot)))
		return fmt.Errorf("notes: store not loaded: %w", apperr.ErrStorageUnavailable)
	}

	err := m.store.SaveAll(ctx, snapshot)

	m.mu.Lock()
	m.durable = err == nil
	m.mu.Unlock()

	if err != nil {
		m.report("notes: save failed, continuing in memory", err)
		return err
	}
	m.logger.Debug("notes: saved", slog.Int("notes", len(snapshot)))
	return nil
}

func (m *Manager) report(msg string, err error) {
	m.logger.Error(msg, slog.String("error", err.Error()))
	if m.onNotice != nil {
		m.onNotice(err)
	}
}

func (m *Manager) emit(kind string, ids ...int64) {
	if m.onEvent != nil {
		m.onEvent(kind, ids)
	}
}

func byID(a, b models.Note) int {
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

func (m *Manager) indexLocked(id int64) int {
	return slices.IndexFunc(m.notes, func(n models.Note) bool { return n.ID == id })
}
