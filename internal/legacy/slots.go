// Package legacy reads the deprecated flat key-value slots and moves their
// contents into the transactional store exactly once.
package legacy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultKey is the slot the previous releases wrote the collection to.
const DefaultKey = "bloc-notes-sections"

// Slots is a flat key-value store of whole serialized values.
type Slots interface {
	// Get returns the value under key; ok is false when the slot is absent.
	Get(key string) (data []byte, ok bool, err error)
	// Remove deletes the slot. Removing an absent slot is not an error.
	Remove(key string) error
}

// FS implements Slots with one file per key inside a directory.
type FS struct {
	root string // absolute path to slot directory
}

// NewFS creates a slot store rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("legacy: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("legacy: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("legacy: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// slotPath maps a key to its file. Keys are plain names; anything that
// could leave the root is rejected.
func (f *FS) slotPath(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("legacy: invalid slot key %q", key)
	}
	return filepath.Join(f.root, key), nil
}

// Get reads a slot.
func (f *FS) Get(key string) ([]byte, bool, error) {
	p, err := f.slotPath(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("legacy: read %s: %w", key, err)
	}
	return data, true, nil
}

// Remove deletes a slot.
func (f *FS) Remove(key string) error {
	p, err := f.slotPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("legacy: remove %s: %w", key, err)
	}
	return nil
}
