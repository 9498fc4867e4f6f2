// Package workspace manages the per-run temporary directory that holds staged
// images while the converter reads them.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// RunDirPrefix prefixes every run directory created under the temp root.
const RunDirPrefix = "run-"

// Workspace owns one run directory. Write is safe for concurrent use; Purge and
// Close must not race with writers.
type Workspace struct {
	mu  sync.Mutex
	dir string
}

// New creates a fresh run directory under base.
func New(base string) (*Workspace, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create temp root: %w", err)
	}
	dir, err := os.MkdirTemp(base, RunDirPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("create run workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the run directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Write stores data under name and returns the file path.
func (w *Workspace) Write(name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid staged file name %q", name)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write staged file: %w", err)
	}
	return path, nil
}

// Purge removes every file in the run directory and keeps the directory.
func (w *Workspace) Purge() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read workspace: %w", err)
	}
	var errs []error
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(w.dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close removes the run directory.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return os.RemoveAll(w.dir)
}
