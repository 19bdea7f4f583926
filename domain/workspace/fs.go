// Package workspace defines the filesystem capability tools operate through.
package workspace

import (
	"io/fs"
	"path/filepath"
)

// FS is the host filesystem as seen by the built-in tools.
// Paths are absolute; callers resolve them first.
type FS interface {
	// Exists reports whether anything exists at path.
	Exists(path string) bool

	// ExistsFile reports whether path is a regular file.
	ExistsFile(path string) bool

	// ExistsDir reports whether path is a directory.
	ExistsDir(path string) bool

	// ReadFileText reads a whole file as UTF-8 text.
	ReadFileText(path string) (string, error)

	// WriteFile replaces the contents of path, creating parent directories.
	WriteFile(path string, content string) error

	// ReadDir lists the entries of a directory sorted by name.
	ReadDir(path string) ([]fs.FileInfo, error)

	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)

	// Walk visits the tree rooted at root in lexical order.
	Walk(root string, fn filepath.WalkFunc) error

	// HomeDir returns the user's home directory.
	HomeDir() (string, error)
}
