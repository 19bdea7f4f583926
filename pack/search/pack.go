// Package search provides the grep_search tool.
package search

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/pack"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/domain/workspace"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/pathsafe"
	storagefs "github.com/felixgeelhaar/toolgate/infrastructure/storage/filesystem"
)

// ToolName is the registered name of the search tool.
const ToolName = "grep_search"

const (
	defaultMaxMatches  = 500
	defaultMaxFileSize = 5 * 1024 * 1024
	maxLineLength      = 500
)

// Config configures the search pack.
type Config struct {
	// FS is the filesystem searched.
	FS workspace.FS

	// Sanitizer resolves user paths.
	Sanitizer *pathsafe.Sanitizer

	// WorkingDir is the default search root and the base for relative paths.
	WorkingDir string

	// MaxMatches caps the matches returned by one search.
	MaxMatches int

	// MaxFileSize skips larger files.
	MaxFileSize int64

	// IgnoreDirs are never descended into.
	IgnoreDirs []string
}

// Option configures the search pack.
type Option func(*Config)

// WithFS sets the filesystem.
func WithFS(fs workspace.FS) Option {
	return func(c *Config) {
		c.FS = fs
	}
}

// WithSanitizer sets the path sanitizer.
func WithSanitizer(s *pathsafe.Sanitizer) Option {
	return func(c *Config) {
		c.Sanitizer = s
	}
}

// WithWorkingDir sets the default search root.
func WithWorkingDir(dir string) Option {
	return func(c *Config) {
		c.WorkingDir = dir
	}
}

// WithMaxMatches caps the matches per search.
func WithMaxMatches(n int) Option {
	return func(c *Config) {
		c.MaxMatches = n
	}
}

// WithMaxFileSize skips files larger than n bytes.
func WithMaxFileSize(n int64) Option {
	return func(c *Config) {
		c.MaxFileSize = n
	}
}

// DefaultIgnoreDirs returns directories skipped during a search.
func DefaultIgnoreDirs() []string {
	return []string{
		".git", "node_modules", "__pycache__", ".venv", "venv",
		".idea", ".vscode", "target", "dist", "build", ".cache",
	}
}

// New creates the search pack.
func New(opts ...Option) (*pack.Pack, error) {
	cfg := Config{
		MaxMatches:  defaultMaxMatches,
		MaxFileSize: defaultMaxFileSize,
		IgnoreDirs:  DefaultIgnoreDirs(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.FS == nil {
		cfg.FS = storagefs.NewOS()
	}
	if cfg.Sanitizer == nil {
		cfg.Sanitizer = pathsafe.New(pathsafe.WithHomeDir(cfg.FS.HomeDir))
	}
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = defaultMaxMatches
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}

	return pack.NewBuilder("search").
		WithDescription("Regular expression search over workspace files").
		WithVersion("1.0.0").
		AddTools(Definition(&cfg)).
		Build(), nil
}

// Definition returns the grep_search registration entry.
func Definition(cfg *Config) *tool.Definition {
	return tool.NewBuilder(ToolName).
		WithDescription("Search file contents with a regular expression. Results list the path, line number and matching line.").
		WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
			"query":          tool.Prop("string", "Regular expression to search for"),
			"path":           tool.Prop("string", "File or directory to search, default the working directory"),
			"includePattern": tool.Prop("string", "Glob that file names must match, such as *.go"),
			"caseSensitive":  tool.Prop("boolean", "Match case, default false"),
			"maxMatches":     tool.Prop("integer", "Maximum matches to return"),
		}, []string{"query"})).
		ReadOnly().
		WithTags("search").
		WithConstructor(func(input json.RawMessage) (tool.Tool, error) {
			var g GrepSearch
			if err := json.Unmarshal(input, &g); err != nil {
				return nil, err
			}
			g.config = cfg
			return &g, nil
		}).
		MustBuild()
}

// GrepSearch searches a file tree for lines matching a pattern.
type GrepSearch struct {
	Query          string `json:"query"`
	Path           string `json:"path"`
	IncludePattern string `json:"includePattern"`
	CaseSensitive  bool   `json:"caseSensitive"`
	MaxMatches     int    `json:"maxMatches"`

	config *Config
	re     *regexp.Regexp
}

// Match is one matching line.
type Match struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Result is the JSON output of a search.
type Result struct {
	Matches       []Match `json:"matches"`
	FilesSearched int     `json:"filesSearched"`
	FilesMatched  int     `json:"filesMatched"`
	Truncated     bool    `json:"truncated,omitempty"`
}

// Name returns the tool name.
func (g *GrepSearch) Name() string { return ToolName }

// Validate compiles the pattern and checks the search root.
func (g *GrepSearch) Validate(_ context.Context) error {
	if g.Query == "" {
		return fmt.Errorf("%w: query is required", tool.ErrValidation)
	}
	pattern := g.Query
	if !g.CaseSensitive && !strings.HasPrefix(pattern, "(?i)") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("%w: invalid regular expression: %v", tool.ErrValidation, err)
	}
	g.re = re

	if g.IncludePattern != "" {
		if _, err := filepath.Match(strings.TrimPrefix(g.IncludePattern, "**/"), ""); err != nil {
			return fmt.Errorf("%w: invalid includePattern: %v", tool.ErrValidation, err)
		}
	}
	if g.MaxMatches < 0 {
		return fmt.Errorf("%w: maxMatches must be zero or more", tool.ErrValidation)
	}

	root, err := g.root()
	if err != nil {
		return err
	}
	if !g.config.FS.Exists(root) {
		return fmt.Errorf("%w: path does not exist: %s", tool.ErrValidation, root)
	}
	return nil
}

func (g *GrepSearch) root() (string, error) {
	p := g.Path
	if p == "" {
		p = g.config.WorkingDir
	}
	if p == "" {
		p = "."
	}
	resolved, err := g.config.Sanitizer.Resolve(p, g.config.WorkingDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", tool.ErrValidation, err)
	}
	return resolved, nil
}

// RequiresAcceptance allows searches, except outside confined workspace roots.
func (g *GrepSearch) RequiresAcceptance(_ context.Context) command.Validation {
	root, err := g.root()
	if err != nil {
		return command.Allow()
	}
	if !g.config.Sanitizer.Contains(root) {
		return command.RequireAcceptance(command.WarningOutsideWorkspace)
	}
	return command.Allow()
}

// QueueDescription names the pattern and root.
func (g *GrepSearch) QueueDescription(sink tool.Sink) error {
	root, _ := g.root()
	desc := fmt.Sprintf("Searching for %q in %s", g.Query, root)
	if g.IncludePattern != "" {
		desc += " (files matching " + g.IncludePattern + ")"
	}
	if err := sink.Write(desc + "\n"); err != nil {
		return err
	}
	return sink.End()
}

// Invoke walks the tree and returns the matches as JSON.
func (g *GrepSearch) Invoke(ctx context.Context, _ tool.Sink) (tool.Output, error) {
	if err := g.Validate(ctx); err != nil {
		return tool.Output{}, err
	}
	root, _ := g.root()

	limit := g.config.MaxMatches
	if g.MaxMatches > 0 && g.MaxMatches < limit {
		limit = g.MaxMatches
	}

	res := Result{Matches: []Match{}}
	err := g.config.FS.Walk(root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", tool.ErrCancelled, ctxErr)
		}
		if info.IsDir() {
			if path != root && g.ignoreDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || info.Size() > g.config.MaxFileSize || isBinaryFileByExtension(path) {
			return nil
		}
		if !g.included(root, path) {
			return nil
		}

		matches, err := g.searchFile(path, limit-len(res.Matches))
		if err != nil {
			return nil
		}
		res.FilesSearched++
		if len(matches) > 0 {
			res.FilesMatched++
			res.Matches = append(res.Matches, matches...)
		}
		if len(res.Matches) >= limit {
			res.Truncated = true
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipAll) {
		if errors.Is(err, tool.ErrCancelled) {
			return tool.Output{}, err
		}
		return tool.Output{}, fmt.Errorf("%w: %v", tool.ErrExecution, err)
	}
	return tool.JSONOutput(res)
}

func (g *GrepSearch) ignoreDir(name string) bool {
	for _, ignore := range g.config.IgnoreDirs {
		if name == ignore {
			return true
		}
	}
	return false
}

// included applies the include glob to the file name and to the path
// relative to the search root.
func (g *GrepSearch) included(root, path string) bool {
	if g.IncludePattern == "" {
		return true
	}
	pattern := strings.TrimPrefix(g.IncludePattern, "**/")
	if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	ok, _ := filepath.Match(pattern, rel)
	return ok
}

func (g *GrepSearch) searchFile(path string, limit int) ([]Match, error) {
	content, err := g.config.FS.ReadFileText(path)
	if err != nil {
		return nil, err
	}
	if strings.IndexByte(content, 0) >= 0 {
		return nil, nil
	}

	var matches []Match
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		if !g.re.MatchString(text) {
			continue
		}
		matches = append(matches, Match{Path: path, Line: line, Text: truncateLine(text, maxLineLength)})
		if len(matches) >= limit {
			break
		}
	}
	return matches, scanner.Err()
}

var binaryExts = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".bin": true, ".dat": true, ".db": true, ".sqlite": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".ico": true, ".bmp": true, ".webp": true, ".pdf": true,
	".zip": true, ".tar": true, ".gz": true, ".7z": true,
	".mp3": true, ".mp4": true, ".wav": true,
	".ttf": true, ".woff": true, ".woff2": true,
	".pyc": true, ".class": true, ".o": true, ".a": true,
}

func isBinaryFileByExtension(path string) bool {
	return binaryExts[strings.ToLower(filepath.Ext(path))]
}

// truncateLine cuts line to at most n runes.
func truncateLine(line string, n int) string {
	runes := []rune(line)
	if len(runes) <= n {
		return line
	}
	return string(runes[:n]) + "..."
}
