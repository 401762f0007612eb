package durability

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// PathHost judges protection by where the store file lives: the system temp
// and per-user cache directories are purged by the OS under pressure, any
// other location is left alone.
type PathHost struct {
	Path string

	// volatileDirs overrides the purgeable directories in tests.
	volatileDirs []string
}

// NewPathHost creates a host for the store file at path.
func NewPathHost(path string) *PathHost {
	return &PathHost{Path: path}
}

// Persisted reports whether Path is outside every purgeable directory.
func (h *PathHost) Persisted(_ context.Context) (bool, error) {
	if h.Path == "" || strings.HasPrefix(h.Path, ":memory:") || strings.Contains(h.Path, "mode=memory") {
		return false, nil
	}
	target, err := resolve(h.Path)
	if err != nil {
		return false, err
	}
	for _, dir := range h.volatile() {
		d, err := resolve(dir)
		if err != nil {
			continue
		}
		if target == d || strings.HasPrefix(target, d+string(os.PathSeparator)) {
			return false, nil
		}
	}
	return true, nil
}

// Persist cannot relocate the store; it reports the current state.
func (h *PathHost) Persist(ctx context.Context) (bool, error) {
	return h.Persisted(ctx)
}

func (h *PathHost) volatile() []string {
	if h.volatileDirs != nil {
		return h.volatileDirs
	}
	dirs := []string{os.TempDir()}
	if cache, err := os.UserCacheDir(); err == nil {
		dirs = append(dirs, cache)
	}
	return dirs
}

// resolve returns an absolute path with symlinks evaluated on the longest
// existing prefix.
func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	cur, rest := abs, ""
	for {
		if real, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(real, rest), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}
