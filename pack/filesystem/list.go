package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// skippedDirs are listed but never descended into.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

func listDefinition(cfg *Config) *tool.Definition {
	return tool.NewBuilder(ListToolName).
		WithDescription("List the entries of a directory. maxDepth 0 lists direct children only; omit it to list recursively.").
		WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
			"path":     tool.Prop("string", "Path to the directory"),
			"maxDepth": tool.Prop("integer", "Maximum recursion depth"),
		}, []string{"path"})).
		ReadOnly().
		WithMaxResponseSize(cfg.ListMaxResponseSize).
		WithTags("filesystem").
		WithConstructor(func(input json.RawMessage) (tool.Tool, error) {
			var in struct {
				Path     string `json:"path"`
				MaxDepth *int   `json:"maxDepth"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, err
			}
			return &ListDirectory{Path: in.Path, MaxDepth: in.MaxDepth, config: cfg}, nil
		}).
		MustBuild()
}

// ListDirectory lists a directory tree, one entry per line.
type ListDirectory struct {
	Path     string
	MaxDepth *int

	config *Config
}

// Name returns the tool name.
func (l *ListDirectory) Name() string { return ListToolName }

// Validate requires an existing directory.
func (l *ListDirectory) Validate(_ context.Context) error {
	path, err := l.config.resolve(l.Path)
	if err != nil {
		return err
	}
	if !l.config.FS.ExistsDir(path) {
		return fmt.Errorf("%w: directory does not exist: %s", tool.ErrValidation, path)
	}
	if l.MaxDepth != nil && *l.MaxDepth < 0 {
		return fmt.Errorf("%w: maxDepth must be zero or more", tool.ErrValidation)
	}
	return nil
}

// RequiresAcceptance allows listings, except outside confined workspace roots.
func (l *ListDirectory) RequiresAcceptance(_ context.Context) command.Validation {
	return l.config.readVerdict(l.Path)
}

// QueueDescription names the directory.
func (l *ListDirectory) QueueDescription(sink tool.Sink) error {
	desc := "Listing directory: " + l.Path
	if l.MaxDepth != nil {
		desc += fmt.Sprintf(" (depth %d)", *l.MaxDepth)
	}
	if err := sink.Write(desc + "\n"); err != nil {
		return err
	}
	return sink.End()
}

// Invoke walks the directory. Each line is "[D] path" or "[F] path size".
func (l *ListDirectory) Invoke(ctx context.Context, _ tool.Sink) (tool.Output, error) {
	if err := l.Validate(ctx); err != nil {
		return tool.Output{}, err
	}
	root, _ := l.config.resolve(l.Path)

	var sb strings.Builder
	err := l.config.FS.Walk(root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", tool.ErrCancelled, ctxErr)
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))

		if info.IsDir() {
			fmt.Fprintf(&sb, "[D] %s\n", path)
			if skippedDirs[info.Name()] || (l.MaxDepth != nil && depth >= *l.MaxDepth) {
				return filepath.SkipDir
			}
			return nil
		}
		fmt.Fprintf(&sb, "[F] %s %d\n", path, info.Size())
		return nil
	})
	if err != nil {
		if errors.Is(err, tool.ErrCancelled) {
			return tool.Output{}, err
		}
		return tool.Output{}, fmt.Errorf("%w: %v", tool.ErrExecution, err)
	}
	return tool.TextOutput(sb.String()), nil
}
