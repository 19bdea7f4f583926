// Package filesystem provides the fs_read, fs_write and list_directory tools.
package filesystem

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/pack"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/domain/workspace"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/pathsafe"
	storagefs "github.com/felixgeelhaar/toolgate/infrastructure/storage/filesystem"
)

// Tool names.
const (
	ReadToolName  = "fs_read"
	WriteToolName = "fs_write"
	ListToolName  = "list_directory"
)

// DefaultListMaxResponseSize is the list_directory output ceiling.
const DefaultListMaxResponseSize = 1_600_000

// Config configures the filesystem pack.
type Config struct {
	// FS is the filesystem the tools operate on.
	FS workspace.FS

	// Sanitizer resolves user paths. When it has roots, reads and listings
	// outside them require acceptance.
	Sanitizer *pathsafe.Sanitizer

	// WorkingDir is the base for relative paths.
	WorkingDir string

	// AutoApproveWrites lets fs_write run without acceptance.
	AutoApproveWrites bool

	// ListMaxResponseSize is the list_directory output ceiling.
	ListMaxResponseSize int
}

// Option configures the filesystem pack.
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

// WithWorkingDir sets the base for relative paths.
func WithWorkingDir(dir string) Option {
	return func(c *Config) {
		c.WorkingDir = dir
	}
}

// WithAutoApproveWrites lets fs_write run without acceptance.
func WithAutoApproveWrites(enabled bool) Option {
	return func(c *Config) {
		c.AutoApproveWrites = enabled
	}
}

// WithListMaxResponseSize sets the list_directory output ceiling.
func WithListMaxResponseSize(n int) Option {
	return func(c *Config) {
		c.ListMaxResponseSize = n
	}
}

// New creates the filesystem pack.
func New(opts ...Option) (*pack.Pack, error) {
	cfg := Config{
		ListMaxResponseSize: DefaultListMaxResponseSize,
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
	if cfg.ListMaxResponseSize <= 0 {
		cfg.ListMaxResponseSize = DefaultListMaxResponseSize
	}
	if cfg.WorkingDir != "" && !cfg.FS.ExistsDir(cfg.WorkingDir) {
		return nil, errors.New("working directory is not a directory")
	}

	return pack.NewBuilder("filesystem").
		WithDescription("Workspace file reads, writes and listings").
		WithVersion("1.0.0").
		AddTools(
			readDefinition(&cfg),
			writeDefinition(&cfg),
			listDefinition(&cfg),
		).
		Build(), nil
}

// resolve turns a user path into an absolute one. Failures are
// validation errors.
func (c *Config) resolve(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: path is required", tool.ErrValidation)
	}
	resolved, err := c.Sanitizer.Resolve(p, c.WorkingDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", tool.ErrValidation, err)
	}
	return resolved, nil
}

// readVerdict is the acceptance verdict for tools that only read.
func (c *Config) readVerdict(p string) command.Validation {
	resolved, err := c.resolve(p)
	if err != nil {
		return command.Allow()
	}
	if !c.Sanitizer.Contains(resolved) {
		return command.RequireAcceptance(command.WarningOutsideWorkspace)
	}
	return command.Allow()
}
