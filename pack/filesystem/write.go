package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// Write commands.
const (
	CommandCreate     = "create"
	CommandStrReplace = "strReplace"
	CommandInsert     = "insert"
	CommandAppend     = "append"
)

func writeDefinition(cfg *Config) *tool.Definition {
	return tool.NewBuilder(WriteToolName).
		WithDescription("Create or edit a text file. create replaces the whole file with fileText; " +
			"strReplace swaps the single occurrence of oldStr for newStr; insert adds newStr after insertLine; " +
			"append adds newStr at the end.").
		WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
			"command":    tool.EnumProp("Edit to perform", CommandCreate, CommandStrReplace, CommandInsert, CommandAppend),
			"path":       tool.Prop("string", "Path to the file"),
			"fileText":   tool.Prop("string", "Full content for create"),
			"oldStr":     tool.Prop("string", "Text to replace, must occur exactly once"),
			"newStr":     tool.Prop("string", "Replacement, inserted or appended text"),
			"insertLine": tool.Prop("integer", "Line after which newStr is inserted, 0 for the top"),
		}, []string{"command", "path"})).
		WithRiskLevel(tool.RiskMedium).
		WithTags("filesystem").
		WithConstructor(func(input json.RawMessage) (tool.Tool, error) {
			var in struct {
				Command    string  `json:"command"`
				Path       string  `json:"path"`
				FileText   *string `json:"fileText"`
				OldStr     string  `json:"oldStr"`
				NewStr     string  `json:"newStr"`
				InsertLine *int    `json:"insertLine"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, err
			}
			return &FsWrite{
				Command:    in.Command,
				Path:       in.Path,
				FileText:   in.FileText,
				OldStr:     in.OldStr,
				NewStr:     in.NewStr,
				InsertLine: in.InsertLine,
				config:     cfg,
			}, nil
		}).
		MustBuild()
}

// FsWrite performs one edit on a text file.
type FsWrite struct {
	Command    string
	Path       string
	FileText   *string
	OldStr     string
	NewStr     string
	InsertLine *int

	config *Config
}

// Name returns the tool name.
func (w *FsWrite) Name() string { return WriteToolName }

// Validate checks the command's parameters against the current file.
func (w *FsWrite) Validate(_ context.Context) error {
	path, err := w.config.resolve(w.Path)
	if err != nil {
		return err
	}
	if w.config.FS.ExistsDir(path) {
		return fmt.Errorf("%w: %s is a directory", tool.ErrValidation, path)
	}

	switch w.Command {
	case CommandCreate:
		if w.FileText == nil {
			return fmt.Errorf("%w: fileText is required for create", tool.ErrValidation)
		}
		return nil
	case CommandStrReplace, CommandInsert, CommandAppend:
	default:
		return fmt.Errorf("%w: unknown command %q", tool.ErrValidation, w.Command)
	}

	if !w.config.FS.ExistsFile(path) {
		return fmt.Errorf("%w: file does not exist: %s", tool.ErrValidation, path)
	}

	switch w.Command {
	case CommandStrReplace:
		if w.OldStr == "" {
			return fmt.Errorf("%w: oldStr is required for strReplace", tool.ErrValidation)
		}
		content, err := w.config.FS.ReadFileText(path)
		if err != nil {
			return fmt.Errorf("%w: %v", tool.ErrValidation, err)
		}
		switch n := strings.Count(content, w.OldStr); n {
		case 1:
		case 0:
			return fmt.Errorf("%w: oldStr not found in %s", tool.ErrValidation, path)
		default:
			return fmt.Errorf("%w: oldStr occurs %d times in %s, it must be unique", tool.ErrValidation, n, path)
		}
	case CommandInsert:
		if w.InsertLine == nil || *w.InsertLine < 0 {
			return fmt.Errorf("%w: insertLine must be zero or more", tool.ErrValidation)
		}
	case CommandAppend:
		if w.NewStr == "" {
			return fmt.Errorf("%w: newStr is required for append", tool.ErrValidation)
		}
	}
	return nil
}

// RequiresAcceptance gates every write unless writes are auto-approved.
func (w *FsWrite) RequiresAcceptance(_ context.Context) command.Validation {
	if w.config.AutoApproveWrites {
		return command.Allow()
	}
	return command.RequireAcceptance("")
}

// QueueDescription writes a diff of the pending change.
func (w *FsWrite) QueueDescription(sink tool.Sink) error {
	path, err := w.config.resolve(w.Path)
	if err != nil {
		return err
	}
	old := ""
	if w.config.FS.ExistsFile(path) {
		if old, err = w.config.FS.ReadFileText(path); err != nil {
			return err
		}
	}
	updated, err := w.apply(old)
	if err != nil {
		return err
	}

	desc := fmt.Sprintf("Path: %s\n\n```diff\n%s```\n", path, unifiedDiff(path, old, updated))
	if err := sink.Write(desc); err != nil {
		return err
	}
	return sink.End()
}

// Invoke applies the edit and writes the file.
func (w *FsWrite) Invoke(ctx context.Context, _ tool.Sink) (tool.Output, error) {
	if err := w.Validate(ctx); err != nil {
		return tool.Output{}, err
	}
	path, _ := w.config.resolve(w.Path)

	old := ""
	if w.Command != CommandCreate {
		content, err := w.config.FS.ReadFileText(path)
		if err != nil {
			return tool.Output{}, fmt.Errorf("%w: %v", tool.ErrExecution, err)
		}
		old = content
	}
	updated, err := w.apply(old)
	if err != nil {
		return tool.Output{}, err
	}
	if err := w.config.FS.WriteFile(path, updated); err != nil {
		return tool.Output{}, fmt.Errorf("%w: %v", tool.ErrExecution, err)
	}
	return tool.TextOutput(fmt.Sprintf("%s %s: %d bytes written", w.Command, path, len(updated))), nil
}

// apply returns the file content after the edit.
func (w *FsWrite) apply(old string) (string, error) {
	switch w.Command {
	case CommandCreate:
		if w.FileText == nil {
			return "", fmt.Errorf("%w: fileText is required for create", tool.ErrValidation)
		}
		return *w.FileText, nil
	case CommandStrReplace:
		return strings.Replace(old, w.OldStr, w.NewStr, 1), nil
	case CommandInsert:
		if w.InsertLine == nil {
			return "", fmt.Errorf("%w: insertLine is required for insert", tool.ErrValidation)
		}
		return insertAfter(old, *w.InsertLine, w.NewStr), nil
	case CommandAppend:
		if old != "" && !strings.HasSuffix(old, "\n") {
			old += "\n"
		}
		return old + w.NewStr, nil
	default:
		return "", fmt.Errorf("%w: unknown command %q", tool.ErrValidation, w.Command)
	}
}

// insertAfter inserts text after line n (1-based). n past the end appends.
func insertAfter(content string, n int, text string) string {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if n <= 0 {
		return text + content
	}

	offset := 0
	for i := 0; i < n; i++ {
		idx := strings.IndexByte(content[offset:], '\n')
		if idx < 0 {
			if content != "" && !strings.HasSuffix(content, "\n") {
				return content + "\n" + text
			}
			return content + text
		}
		offset += idx + 1
	}
	return content[:offset] + text + content[offset:]
}
