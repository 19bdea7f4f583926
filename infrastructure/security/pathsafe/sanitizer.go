// Package pathsafe normalizes and validates filesystem paths handed to tools:
// home-directory expansion, absolute resolution against a working directory,
// and containment checks against workspace roots.
package pathsafe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyPath indicates an empty or whitespace-only path.
	ErrEmptyPath = errors.New("path is empty")

	// ErrOutsideWorkspace indicates a path resolves outside every workspace root.
	ErrOutsideWorkspace = errors.New("path is outside the workspace")
)

// HomeDirFunc returns the current user's home directory.
type HomeDirFunc func() (string, error)

// Sanitizer resolves user-supplied paths.
type Sanitizer struct {
	home  HomeDirFunc
	roots []string
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithHomeDir overrides how the home directory is found.
func WithHomeDir(fn HomeDirFunc) Option {
	return func(s *Sanitizer) {
		s.home = fn
	}
}

// WithRoots sets the workspace roots used by Confine.
func WithRoots(roots ...string) Option {
	return func(s *Sanitizer) {
		for _, r := range roots {
			if r == "" {
				continue
			}
			s.roots = append(s.roots, filepath.Clean(r))
		}
	}
}

// New creates a Sanitizer.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{home: os.UserHomeDir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Roots returns the configured workspace roots.
func (s *Sanitizer) Roots() []string {
	return append([]string(nil), s.roots...)
}

// ExpandHome replaces a leading "~" or "~/" with the home directory.
// Other "~user" forms are returned unchanged.
func (s *Sanitizer) ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := s.home()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if p == "~" {
		return home, nil
	}
	return filepath.Join(home, p[2:]), nil
}

// Resolve expands and cleans p, joining it onto cwd when relative.
// An empty cwd falls back to the process working directory.
func (s *Sanitizer) Resolve(p, cwd string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrEmptyPath
	}

	expanded, err := s.ExpandHome(p)
	if err != nil {
		return "", err
	}

	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}

	if cwd == "" {
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", p, err)
		}
		return abs, nil
	}
	return filepath.Clean(filepath.Join(cwd, expanded)), nil
}

// Sanitize resolves p against the process working directory.
func (s *Sanitizer) Sanitize(p string) (string, error) {
	return s.Resolve(p, "")
}

// Confine resolves p against cwd and fails if the result is outside every
// configured root. With no roots configured every path is allowed.
func (s *Sanitizer) Confine(p, cwd string) (string, error) {
	resolved, err := s.Resolve(p, cwd)
	if err != nil {
		return "", err
	}
	if s.Contains(resolved) {
		return resolved, nil
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, resolved)
}

// Contains reports whether the absolute path p is inside a configured root,
// both as written and after resolving symlinks in its existing prefix.
// With no roots configured every path is contained.
func (s *Sanitizer) Contains(p string) bool {
	if len(s.roots) == 0 {
		return true
	}
	if !Within(p, s.roots...) {
		return false
	}
	realRoots := make([]string, len(s.roots))
	for i, root := range s.roots {
		realRoots[i] = EvalExisting(root)
	}
	return Within(EvalExisting(p), realRoots...)
}

// EvalExisting resolves symlinks in the longest prefix of p that exists
// and appends the remainder unchanged.
func EvalExisting(p string) string {
	cur, rest := filepath.Clean(p), ""
	for {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return filepath.Clean(p)
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

// Within reports whether the absolute path p equals or is nested under
// one of roots.
func Within(p string, roots ...string) bool {
	for _, root := range roots {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			continue
		}
		if rel == "." {
			return true
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
			continue
		}
		return true
	}
	return false
}

// LooksLikePath reports whether a shell token is probably a filesystem path
// rather than a flag or plain word.
func LooksLikePath(tok string) bool {
	if tok == "" || strings.HasPrefix(tok, "-") {
		return false
	}
	if tok == "." || tok == ".." || tok == "~" {
		return true
	}
	return strings.HasPrefix(tok, "/") ||
		strings.HasPrefix(tok, "~/") ||
		strings.HasPrefix(tok, "./") ||
		strings.HasPrefix(tok, "../") ||
		strings.Contains(tok, string(filepath.Separator))
}

// Unresolvable reports whether the shell would rewrite tok before use, so
// its final path cannot be known statically: a parameter expansion such
// as $HOME or ${VAR}, or a "~user" home reference.
func Unresolvable(tok string) bool {
	if strings.HasPrefix(tok, "~") && tok != "~" && !strings.HasPrefix(tok, "~/") {
		return true
	}
	for i := 0; i < len(tok)-1; i++ {
		if tok[i] != '$' {
			continue
		}
		switch c := tok[i+1]; {
		case c == '{' || c == '_' || c == '@' || c == '*' || c == '#' || c == '?' || c == '$' || c == '!':
			return true
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return true
		}
	}
	return false
}
