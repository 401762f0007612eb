// Package inbox imports note export files dropped into a watched directory.
package inbox

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/bloc/internal/apperr"
	"github.com/starford/bloc/internal/notes"
)

// Suffixes appended to a processed file.
const (
	ImportedSuffix = ".imported"
	RejectedSuffix = ".rejected"
)

// settle is how long a file must stay quiet before it is imported.
const settle = 200 * time.Millisecond

// Importer appends an export payload to the collection.
type Importer interface {
	Import(ctx context.Context, data []byte) (notes.ImportSummary, error)
}

// Watch imports every *.json file already in dir, then watches dir and
// imports new ones until ctx is cancelled. Writes are debounced so a file is
// read once its writer has finished.
func Watch(ctx context.Context, dir string, imp Importer, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("inbox: started", slog.String("dir", dir))

	if err := Sweep(ctx, dir, imp, logger); err != nil {
		logger.Warn("inbox: initial sweep failed", slog.String("error", err.Error()))
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func(path string) {
		pending[path] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(settle)
			timerCh = timer.C
		} else {
			timer.Reset(settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("inbox: stopped")
			return nil

		case <-timerCh:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)
			for _, p := range paths {
				importFile(ctx, p, imp, logger)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isCandidate(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				schedule(ev.Name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// Sweep imports the *.json files currently in dir in name order.
func Sweep(ctx context.Context, dir string, imp Importer, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if isCandidate(p) {
			importFile(ctx, p, imp, logger)
		}
	}
	return nil
}

func isCandidate(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".json") && !strings.HasPrefix(base, ".")
}

// importFile reads path and hands it to imp. Decode failures mark the file
// rejected; other failures leave it in place for the next event.
func importFile(ctx context.Context, path string, imp Importer, logger *slog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("inbox: read failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return
	}

	sum, err := imp.Import(ctx, data)
	switch {
	case err == nil:
		logger.Info("inbox: imported",
			slog.String("path", path),
			slog.Int("count", sum.Count),
			slog.Int64("first_id", sum.FirstID))
		mark(path, ImportedSuffix, logger)
	case errors.Is(err, apperr.ErrInvalidFormat), errors.Is(err, apperr.ErrParse):
		logger.Warn("inbox: rejected", slog.String("path", path), slog.String("error", err.Error()))
		mark(path, RejectedSuffix, logger)
	default:
		logger.Error("inbox: import failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

func mark(path, suffix string, logger *slog.Logger) {
	if err := os.Rename(path, path+suffix); err != nil {
		logger.Warn("inbox: rename failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}
