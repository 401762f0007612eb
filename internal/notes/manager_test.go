package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/starford/bloc/internal/apperr"
	"github.com/starford/bloc/internal/models"
	"github.com/starford/bloc/internal/store"
)

var quiet = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// memStore records every save.
type memStore struct {
	mu      sync.Mutex
	saved   []models.Note
	saves   int
	failing bool
	loadErr error
}

func (s *memStore) SaveAll(_ context.Context, notes []models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return apperr.ErrWriteFailed
	}
	s.saved = append([]models.Note(nil), notes...)
	s.saves++
	return nil
}

func (s *memStore) LoadAll(context.Context) ([]models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]models.Note{}, s.saved...), nil
}

func (s *memStore) snapshot() ([]models.Note, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Note(nil), s.saved...), s.saves
}

func (s *memStore) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func (s *memStore) setLoadErr(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

// gateStore blocks every SaveAll until release is closed.
type gateStore struct {
	memStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gateStore) SaveAll(ctx context.Context, notes []models.Note) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.memStore.SaveAll(ctx, notes)
}

type stubMigrator struct {
	called bool
	err    error
}

func (s *stubMigrator) MigrateOnce(context.Context) ([]models.Note, error) {
	s.called = true
	return nil, s.err
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newManager(t *testing.T, s Store, opts ...Option) (*Manager, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.Local)}
	opts = append([]Option{WithClock(c.now), WithLogger(quiet), WithDebounce(40 * time.Millisecond)}, opts...)
	m := NewManager(s, opts...)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m, c
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestBootstrapEmptyCreatesOneNote(t *testing.T) {
	s := &memStore{}
	m, _ := newManager(t, s)
	mig := &stubMigrator{}

	first, err := m.Bootstrap(context.Background(), mig)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if !mig.called {
		t.Error("migration did not run")
	}
	list := m.List()
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	if first.ID != list[0].ID {
		t.Errorf("focused %d, want %d", first.ID, list[0].ID)
	}
	if first.Title != "2025-03-14 note 1" {
		t.Errorf("title = %q", first.Title)
	}
	if saved, n := s.snapshot(); n != 1 || len(saved) != 1 {
		t.Errorf("saves = %d with %d notes, want an immediate save of 1", n, len(saved))
	}
}

func TestBootstrapSortsByID(t *testing.T) {
	c := time.Now()
	s := &memStore{saved: []models.Note{
		{ID: 30, Title: "c", CreatedAt: c, LastModified: c},
		{ID: 10, Title: "a", CreatedAt: c, LastModified: c},
		{ID: 20, Title: "b", CreatedAt: c, LastModified: c},
	}}
	m, _ := newManager(t, s)

	first, err := m.Bootstrap(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != 10 {
		t.Errorf("first = %d, want 10", first.ID)
	}
	list := m.List()
	for i, want := range []int64{10, 20, 30} {
		if list[i].ID != want {
			t.Errorf("list[%d] = %d, want %d", i, list[i].ID, want)
		}
	}
}

func TestBootstrapDegradesOnStorageFailure(t *testing.T) {
	s := &memStore{loadErr: apperr.ErrReadFailed}
	var notices []error
	m, _ := newManager(t, s, WithNotices(func(err error) { notices = append(notices, err) }))
	mig := &stubMigrator{err: apperr.ErrMigrationParse}

	_, err := m.Bootstrap(context.Background(), mig)
	if !errors.Is(err, apperr.ErrReadFailed) || !errors.Is(err, apperr.ErrMigrationParse) {
		t.Errorf("err = %v, want read and migration failures", err)
	}
	if len(m.List()) != 1 {
		t.Errorf("collection should still get its default note")
	}
	if len(notices) < 2 {
		t.Errorf("notices = %v, want at least 2", notices)
	}
	if _, saves := s.snapshot(); saves != 0 {
		t.Errorf("saves = %d, an unread store must not be written", saves)
	}
}

func TestUnreadStoreIsNeverOverwritten(t *testing.T) {
	stored := []models.Note{
		{ID: 1, Title: "one"},
		{ID: 2, Title: "two"},
		{ID: 3, Title: "three"},
	}
	s := &memStore{saved: stored, loadErr: apperr.ErrReadFailed}
	m, _ := newManager(t, s)
	ctx := context.Background()

	first, _ := m.Bootstrap(ctx, nil)
	extra := m.CreateNote(ctx)
	m.UpdateContent(first.ID, "typed while degraded")
	if err := m.Flush(ctx); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("Flush err = %v, want ErrStorageUnavailable", err)
	}
	if _, err := m.Import(ctx, []byte(`[{"title":"imported"}]`)); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if m.Durable() {
		t.Error("Durable should be false while the store is unread")
	}

	saved, saves := s.snapshot()
	if saves != 0 || len(saved) != 3 {
		t.Fatalf("store = %d notes after %d saves, want the original 3 untouched", len(saved), saves)
	}

	// A failed retry keeps saves withheld.
	if err := m.Recover(ctx); !errors.Is(err, apperr.ErrReadFailed) {
		t.Errorf("Recover err = %v, want ErrReadFailed", err)
	}
	if _, saves := s.snapshot(); saves != 0 {
		t.Error("failed recovery wrote to the store")
	}

	s.setLoadErr(nil)
	if err := m.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if !m.Durable() {
		t.Error("Durable should be true after recovery")
	}
	saved, _ = s.snapshot()
	if len(saved) != 6 {
		t.Fatalf("recovered store holds %d notes, want 3 stored + 3 from the session", len(saved))
	}
	for i, want := range []int64{1, 2, 3, first.ID, extra.ID} {
		if saved[i].ID != want {
			t.Errorf("saved[%d] = %d, want %d", i, saved[i].ID, want)
		}
	}
	if saved[3].Content != "typed while degraded" {
		t.Errorf("session edit lost: %q", saved[3].Content)
	}

	// Once read, Recover does nothing.
	_, before := s.snapshot()
	if err := m.Recover(ctx); err != nil {
		t.Fatal(err)
	}
	if _, after := s.snapshot(); after != before {
		t.Error("Recover on a loaded store saved again")
	}
}

func TestRecoverPrefersSessionVersion(t *testing.T) {
	s := &memStore{loadErr: apperr.ErrReadFailed}
	m, _ := newManager(t, s)
	ctx := context.Background()
	first, _ := m.Bootstrap(ctx, nil)
	m.UpdateTitle(first.ID, "session")

	s.mu.Lock()
	s.saved = []models.Note{{ID: first.ID, Title: "stored"}, {ID: 1, Title: "older"}}
	s.loadErr = nil
	s.mu.Unlock()

	if err := m.Recover(ctx); err != nil {
		t.Fatal(err)
	}
	list := m.List()
	if len(list) != 2 || list[0].ID != 1 || list[1].Title != "session" {
		t.Errorf("list = %+v, want stored note then the session version", list)
	}
}

func TestCreateNoteNumbering(t *testing.T) {
	s := &memStore{}
	m, c := newManager(t, s)
	_, _ = m.Bootstrap(context.Background(), nil)

	second := m.CreateNote(context.Background())
	if second.Title != "2025-03-14 note 2" {
		t.Errorf("title = %q, want note 2", second.Title)
	}

	c.advance(24 * time.Hour)
	next := m.CreateNote(context.Background())
	if next.Title != "2025-03-15 note 1" {
		t.Errorf("title = %q, want next day's note 1", next.Title)
	}
	if !next.CreatedAt.Equal(next.LastModified) {
		t.Error("createdAt and lastModified should match on creation")
	}
}

func TestCreateNoteIDCollision(t *testing.T) {
	s := &memStore{}
	m, _ := newManager(t, s)
	_, _ = m.Bootstrap(context.Background(), nil)

	a := m.CreateNote(context.Background())
	b := m.CreateNote(context.Background())
	if a.ID == b.ID {
		t.Fatalf("duplicate id %d", a.ID)
	}
	if b.ID != a.ID+1 {
		t.Errorf("id = %d, want %d", b.ID, a.ID+1)
	}
}

func TestUpdateTitlePlaceholder(t *testing.T) {
	s := &memStore{}
	m, _ := newManager(t, s)
	first, _ := m.Bootstrap(context.Background(), nil)

	for _, blank := range []string{"", "   ", "\t\n"} {
		n, ok := m.UpdateTitle(first.ID, blank)
		if !ok {
			t.Fatal("note not found")
		}
		if n.Title != models.UntitledTitle {
			t.Errorf("UpdateTitle(%q) = %q, want placeholder", blank, n.Title)
		}
	}
}

func TestUpdateUnknownIDIsNoop(t *testing.T) {
	s := &memStore{}
	m, _ := newManager(t, s)
	_, _ = m.Bootstrap(context.Background(), nil)
	before := m.List()

	if _, ok := m.UpdateContent(-1, "x"); ok {
		t.Error("UpdateContent reported success for unknown id")
	}
	if _, ok := m.UpdateTitle(-1, "x"); ok {
		t.Error("UpdateTitle reported success for unknown id")
	}
	if after := m.List(); after[0] != before[0] || len(after) != len(before) {
		t.Error("collection changed")
	}
}

func TestUpdateTouchesLastModified(t *testing.T) {
	s := &memStore{}
	m, c := newManager(t, s)
	first, _ := m.Bootstrap(context.Background(), nil)

	c.advance(time.Minute)
	n, _ := m.UpdateContent(first.ID, "<p>x</p>")
	if !n.LastModified.Equal(first.CreatedAt.Add(time.Minute)) {
		t.Errorf("lastModified = %v", n.LastModified)
	}
	if !n.CreatedAt.Equal(first.CreatedAt) {
		t.Error("createdAt changed")
	}
}

func TestDebouncedUpdatesCollapse(t *testing.T) {
	s := &memStore{}
	m, _ := newManager(t, s)
	first, _ := m.Bootstrap(context.Background(), nil)
	_, base := s.snapshot()

	for i := 0; i < 20; i++ {
		m.UpdateContent(first.ID, "draft")
	}
	m.UpdateContent(first.ID, "final")

	eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		_, n := s.snapshot()
		return n > base
	}, "debounced save never happened")

	time.Sleep(120 * time.Millisecond)
	saved, n := s.snapshot()
	if n-base != 1 {
		t.Errorf("saves = %d, want exactly 1", n-base)
	}
	if len(saved) != 1 || saved[0].Content != "final" {
		t.Errorf("saved = %+v, want final content", saved)
	}
}

func TestDebounceResetsOnEachEdit(t *testing.T) {
	s := &memStore{}
	m, _ := newManager(t, s, WithDebounce(250*time.Millisecond))
	first, _ := m.Bootstrap(context.Background(), nil)
	_, base := s.snapshot()

	for i := 0; i < 5; i++ {
		m.UpdateTitle(first.ID, "typing")
		time.Sleep(20 * time.Millisecond)
		if _, n := s.snapshot(); n != base {
			t.Fatalf("save fired while edits kept arriving")
		}
	}
}

func TestFlushPersistsPendingEdit(t *testing.T) {
	s := &memStore{}
	m, _ := newManager(t, s, WithDebounce(time.Hour))
	first, _ := m.Bootstrap(context.Background(), nil)

	m.UpdateContent(first.ID, "flushed")
	if err := m.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	saved, _ := s.snapshot()
	if saved[0].Content != "flushed" {
		t.Errorf("content = %q", saved[0].Content)
	}

	// Nothing pending: no extra save.
	_, before := s.snapshot()
	_ = m.Flush(context.Background())
	if _, after := s.snapshot(); after != before {
		t.Error("Flush without pending edits saved")
	}
}

func TestImmediateSaveSupersedesPendingDebounce(t *testing.T) {
	s := &memStore{}
	m, _ := newManager(t, s)
	first, _ := m.Bootstrap(context.Background(), nil)
	_, base := s.snapshot()

	m.UpdateContent(first.ID, "edited")
	m.CreateNote(context.Background())

	time.Sleep(150 * time.Millisecond)
	saved, n := s.snapshot()
	if n-base != 1 {
		t.Errorf("saves = %d, want 1 (debounced save folded into create)", n-base)
	}
	if saved[0].Content != "edited" {
		t.Errorf("content = %q, want edited", saved[0].Content)
	}
}

func TestDeleteNotes(t *testing.T) {
	s := &memStore{}
	m, _ := newManager(t, s)
	a, _ := m.Bootstrap(context.Background(), nil)
	b := m.CreateNote(context.Background())
	c := m.CreateNote(context.Background())

	if err := m.DeleteNotes(context.Background(), models.NewIDSet(a.ID, c.ID)); err != nil {
		t.Fatalf("DeleteNotes: %v", err)
	}
	list := m.List()
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("remaining = %+v, want only %d", list, b.ID)
	}
	saved, _ := s.snapshot()
	if len(saved) != 1 {
		t.Errorf("persisted %d notes, want 1", len(saved))
	}
}

func TestDeleteAllRejected(t *testing.T) {
	s := &memStore{}
	m, _ := newManager(t, s)
	a, _ := m.Bootstrap(context.Background(), nil)
	b := m.CreateNote(context.Background())
	_, before := s.snapshot()

	err := m.DeleteNotes(context.Background(), models.NewIDSet(a.ID, b.ID, 999))
	if !errors.Is(err, apperr.ErrWouldEmptyCollection) {
		t.Fatalf("err = %v, want ErrWouldEmptyCollection", err)
	}
	if len(m.List()) != 2 {
		t.Error("collection changed")
	}
	if _, after := s.snapshot(); after != before {
		t.Error("rejected delete persisted")
	}
}

func TestDeleteEmptySelection(t *testing.T) {
	m, _ := newManager(t, &memStore{})
	_, _ = m.Bootstrap(context.Background(), nil)
	if err := m.DeleteNotes(context.Background(), nil); !errors.Is(err, apperr.ErrNoSelection) {
		t.Errorf("err = %v, want ErrNoSelection", err)
	}
}

func TestImportAppendsWithFreshIDs(t *testing.T) {
	s := &memStore{}
	var events []string
	m, _ := newManager(t, s, WithEvents(func(kind string, _ []int64) { events = append(events, kind) }))
	first, _ := m.Bootstrap(context.Background(), nil)
	m.UpdateContent(first.ID, "<p>original</p>")

	exp, err := m.Export(models.NewIDSet(first.ID))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	sum, err := m.Import(context.Background(), exp.Data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if sum.Count != 1 || sum.FirstID != first.ID+1 {
		t.Errorf("summary = %+v, want 1 note with id %d", sum, first.ID+1)
	}

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	orig, imported := list[0], list[1]
	if orig.ID != first.ID || orig.Content != "<p>original</p>" {
		t.Errorf("original altered: %+v", orig)
	}
	if imported.ID == orig.ID {
		t.Error("imported note reused id")
	}
	if imported.Title != orig.Title || imported.Content != orig.Content ||
		!imported.CreatedAt.Equal(orig.CreatedAt) || !imported.LastModified.Equal(orig.LastModified) {
		t.Errorf("imported = %+v, want same content as %+v", imported, orig)
	}
	saved, _ := s.snapshot()
	if len(saved) != 2 {
		t.Errorf("import not persisted immediately: %d notes", len(saved))
	}
	if events[len(events)-1] != EventImported {
		t.Errorf("last event = %q", events[len(events)-1])
	}
}

func TestImportPreservesOrder(t *testing.T) {
	m, _ := newManager(t, &memStore{})
	first, _ := m.Bootstrap(context.Background(), nil)

	sum, err := m.Import(context.Background(), []byte(`[{"title":"x"},{"title":"y"},{"title":"z"}]`))
	if err != nil {
		t.Fatal(err)
	}
	list := m.List()
	for i, want := range []string{"x", "y", "z"} {
		n := list[i+1]
		if n.Title != want || n.ID != first.ID+int64(i)+1 {
			t.Errorf("list[%d] = %d %q, want %d %q", i+1, n.ID, n.Title, first.ID+int64(i)+1, want)
		}
	}
	if sum.FirstID != first.ID+1 {
		t.Errorf("FirstID = %d", sum.FirstID)
	}
}

func TestImportRejectsMalformed(t *testing.T) {
	s := &memStore{}
	m, _ := newManager(t, s)
	_, _ = m.Bootstrap(context.Background(), nil)
	before := m.List()
	_, saves := s.snapshot()

	if _, err := m.Import(context.Background(), []byte(`{"a":1}`)); !errors.Is(err, apperr.ErrInvalidFormat) {
		t.Errorf("object payload: err = %v, want ErrInvalidFormat", err)
	}
	if _, err := m.Import(context.Background(), []byte(`{`)); !errors.Is(err, apperr.ErrParse) {
		t.Errorf("truncated payload: err = %v, want ErrParse", err)
	}
	if _, err := m.Import(context.Background(), []byte(`[{"title":"ok"}, 5]`)); !errors.Is(err, apperr.ErrInvalidFormat) {
		t.Errorf("mixed payload: err = %v, want ErrInvalidFormat", err)
	}
	after := m.List()
	if len(after) != len(before) {
		t.Errorf("collection changed: %d -> %d", len(before), len(after))
	}
	if _, n := s.snapshot(); n != saves {
		t.Error("failed import persisted")
	}
}

func TestSaveFailureKeepsSessionInMemory(t *testing.T) {
	s := &memStore{}
	var notices int
	m, _ := newManager(t, s, WithNotices(func(error) { notices++ }))
	_, _ = m.Bootstrap(context.Background(), nil)

	s.setFailing(true)
	n := m.CreateNote(context.Background())
	if _, ok := m.Get(n.ID); !ok {
		t.Error("note lost after failed save")
	}
	if m.Durable() {
		t.Error("Durable should be false after a failed save")
	}
	if notices != 1 {
		t.Errorf("notices = %d, want 1", notices)
	}

	s.setFailing(false)
	m.CreateNote(context.Background())
	if !m.Durable() {
		t.Error("Durable should recover after a successful save")
	}
	saved, _ := s.snapshot()
	if len(saved) != 3 {
		t.Errorf("recovered save holds %d notes, want 3", len(saved))
	}
}

func TestCloseStopsDebouncedSaves(t *testing.T) {
	s := &memStore{}
	m := NewManager(s, WithLogger(quiet), WithDebounce(20*time.Millisecond))
	first, _ := m.Bootstrap(context.Background(), nil)

	m.UpdateContent(first.ID, "before close")
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, n := s.snapshot()
	m.UpdateContent(first.ID, "after close")
	time.Sleep(80 * time.Millisecond)
	saved, after := s.snapshot()
	if after != n {
		t.Error("debounced save fired after Close")
	}
	if saved[0].Content != "before close" {
		t.Errorf("content = %q", saved[0].Content)
	}
}

func TestFlushWaitsForInFlightSave(t *testing.T) {
	s := &gateStore{entered: make(chan struct{}), release: make(chan struct{})}
	s.memStore.saved = []models.Note{{ID: 1, Title: "stored"}}
	m := NewManager(s, WithLogger(quiet), WithDebounce(10*time.Millisecond))
	ctx := context.Background()
	if _, err := m.Bootstrap(ctx, nil); err != nil {
		t.Fatal(err)
	}

	m.UpdateContent(1, "edit")
	select {
	case <-s.entered:
	case <-time.After(time.Second):
		t.Fatal("debounced save never started")
	}

	done := make(chan error, 1)
	go func() { done <- m.Close(ctx) }()
	select {
	case <-done:
		t.Fatal("Close returned while a save was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(s.release)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Close: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the save finished")
	}
	saved, saves := s.snapshot()
	if saves != 1 || saved[0].Content != "edit" {
		t.Errorf("saves = %d, content = %q, want one save of the edit", saves, saved[0].Content)
	}
}

// TestRoundTripThroughStore checks that after any sequence of operations a
// load from the real store equals the in-memory collection at save time.
func TestRoundTripThroughStore(t *testing.T) {
	dir := t.TempDir()
	var run int

	rapid.Check(t, func(rt *rapid.T) {
		run++
		ctx := context.Background()
		db, err := store.Open(ctx, filepath.Join(dir, fmt.Sprintf("rt-%d.db", run)))
		if err != nil {
			rt.Fatalf("Open: %v", err)
		}
		defer db.Close()

		c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
		m := NewManager(db, WithClock(c.now), WithLogger(quiet), WithDebounce(time.Hour))
		defer m.Close(ctx)
		if _, err := m.Bootstrap(ctx, nil); err != nil {
			rt.Fatalf("Bootstrap: %v", err)
		}

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			c.advance(time.Duration(rapid.IntRange(0, 5000).Draw(rt, "ms")) * time.Millisecond)
			list := m.List()
			pick := list[rapid.IntRange(0, len(list)-1).Draw(rt, "pick")].ID
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				m.CreateNote(ctx)
			case 1:
				m.UpdateContent(pick, rapid.StringMatching(`[a-z<>/ ]{0,30}`).Draw(rt, "content"))
			case 2:
				m.UpdateTitle(pick, rapid.StringMatching(`[A-Za-z ]{0,20}`).Draw(rt, "title"))
			case 3:
				err := m.DeleteNotes(ctx, models.NewIDSet(pick))
				if len(list) == 1 && !errors.Is(err, apperr.ErrWouldEmptyCollection) {
					rt.Fatalf("deleting the last note: err = %v", err)
				}
			}
		}
		if err := m.Flush(ctx); err != nil {
			rt.Fatalf("Flush: %v", err)
		}

		want := m.List()
		got, err := db.LoadAll(ctx)
		if err != nil {
			rt.Fatalf("LoadAll: %v", err)
		}
		if len(got) != len(want) {
			rt.Fatalf("loaded %d notes, want %d", len(got), len(want))
		}
		byID := make(map[int64]models.Note, len(got))
		for _, n := range got {
			byID[n.ID] = n
		}
		for _, w := range want {
			g, ok := byID[w.ID]
			if !ok || g.Title != w.Title || g.Content != w.Content ||
				!g.CreatedAt.Equal(w.CreatedAt) || !g.LastModified.Equal(w.LastModified) {
				rt.Fatalf("note %d: got %+v, want %+v", w.ID, g, w)
			}
			if w.LastModified.Before(w.CreatedAt) {
				rt.Fatalf("note %d: lastModified before createdAt", w.ID)
			}
		}
	})
}
