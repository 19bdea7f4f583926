// Package filesystem provides the afero-backed workspace filesystem.
package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/felixgeelhaar/toolgate/domain/workspace"
)

// ErrNoHomeDir is returned when no home directory is configured or known.
var ErrNoHomeDir = errors.New("home directory unknown")

// Workspace implements workspace.FS on top of an afero filesystem.
type Workspace struct {
	fs   afero.Fs
	home string
}

var _ workspace.FS = (*Workspace)(nil)

// New creates a workspace over fs. home may be empty.
func New(fs afero.Fs, home string) *Workspace {
	return &Workspace{fs: fs, home: home}
}

// NewOS creates a workspace over the host filesystem.
func NewOS() *Workspace {
	home, _ := os.UserHomeDir()
	return New(afero.NewOsFs(), home)
}

// NewMemory creates an in-memory workspace, mostly for tests.
func NewMemory(home string) *Workspace {
	return New(afero.NewMemMapFs(), home)
}

// Fs returns the underlying afero filesystem.
func (w *Workspace) Fs() afero.Fs {
	return w.fs
}

// Exists reports whether anything exists at path.
func (w *Workspace) Exists(path string) bool {
	ok, err := afero.Exists(w.fs, path)
	return err == nil && ok
}

// ExistsFile reports whether path is a regular file.
func (w *Workspace) ExistsFile(path string) bool {
	info, err := w.fs.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ExistsDir reports whether path is a directory.
func (w *Workspace) ExistsDir(path string) bool {
	ok, err := afero.IsDir(w.fs, path)
	return err == nil && ok
}

// ReadFileText reads a whole file as text.
func (w *Workspace) ReadFileText(path string) (string, error) {
	data, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteFile replaces the contents of path, creating parent directories
// with restrictive permissions.
func (w *Workspace) WriteFile(path string, content string) error {
	if err := w.fs.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create parent of %s: %w", path, err)
	}
	mode := os.FileMode(0644)
	if info, err := w.fs.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := afero.WriteFile(w.fs, path, []byte(content), mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadDir lists the entries of a directory sorted by name.
func (w *Workspace) ReadDir(path string) ([]fs.FileInfo, error) {
	entries, err := afero.ReadDir(w.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", path, err)
	}
	return entries, nil
}

// Stat returns file info for path.
func (w *Workspace) Stat(path string) (fs.FileInfo, error) {
	return w.fs.Stat(path)
}

// Walk visits the tree rooted at root in lexical order.
func (w *Workspace) Walk(root string, fn filepath.WalkFunc) error {
	return afero.Walk(w.fs, root, fn)
}

// HomeDir returns the configured home directory.
func (w *Workspace) HomeDir() (string, error) {
	if w.home == "" {
		return "", ErrNoHomeDir
	}
	return w.home, nil
}
