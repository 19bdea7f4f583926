package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/tool"
)

func readDefinition(cfg *Config) *tool.Definition {
	return tool.NewBuilder(ReadToolName).
		WithDescription("Read a text file. readRange selects 1-based lines [start, end]; negative numbers count from the end.").
		WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
			"path": tool.Prop("string", "Path to the file"),
			"readRange": json.RawMessage(`{"type":"array","items":{"type":"integer"},"minItems":1,"maxItems":2,` +
				`"description":"Optional line range [start, end]"}`),
		}, []string{"path"})).
		ReadOnly().
		WithTags("filesystem").
		WithConstructor(func(input json.RawMessage) (tool.Tool, error) {
			var in struct {
				Path      string `json:"path"`
				ReadRange []int  `json:"readRange"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, err
			}
			return &FsRead{Path: in.Path, ReadRange: in.ReadRange, config: cfg}, nil
		}).
		MustBuild()
}

// FsRead reads a file, optionally limited to a line range.
type FsRead struct {
	Path      string
	ReadRange []int

	config *Config
}

// Name returns the tool name.
func (r *FsRead) Name() string { return ReadToolName }

// Validate requires an existing regular file and a well-formed range.
func (r *FsRead) Validate(_ context.Context) error {
	path, err := r.config.resolve(r.Path)
	if err != nil {
		return err
	}
	if !r.config.FS.Exists(path) {
		return fmt.Errorf("%w: path does not exist: %s", tool.ErrValidation, path)
	}
	if !r.config.FS.ExistsFile(path) {
		return fmt.Errorf("%w: %s is not a file, use %s for directories", tool.ErrValidation, path, ListToolName)
	}
	if len(r.ReadRange) > 2 {
		return fmt.Errorf("%w: readRange takes at most two numbers", tool.ErrValidation)
	}
	for _, n := range r.ReadRange {
		if n == 0 {
			return fmt.Errorf("%w: readRange lines start at 1", tool.ErrValidation)
		}
	}
	return nil
}

// RequiresAcceptance allows reads, except outside confined workspace roots.
func (r *FsRead) RequiresAcceptance(_ context.Context) command.Validation {
	return r.config.readVerdict(r.Path)
}

// QueueDescription names the file and range.
func (r *FsRead) QueueDescription(sink tool.Sink) error {
	desc := "Reading file: " + r.Path
	switch len(r.ReadRange) {
	case 1:
		desc += fmt.Sprintf(", from line %d to end of file", r.ReadRange[0])
	case 2:
		desc += fmt.Sprintf(", from line %d to %d", r.ReadRange[0], r.ReadRange[1])
	default:
		desc += ", all lines"
	}
	if err := sink.Write(desc + "\n"); err != nil {
		return err
	}
	return sink.End()
}

// Invoke returns the selected lines as text.
func (r *FsRead) Invoke(ctx context.Context, _ tool.Sink) (tool.Output, error) {
	if err := r.Validate(ctx); err != nil {
		return tool.Output{}, err
	}
	path, _ := r.config.resolve(r.Path)

	content, err := r.config.FS.ReadFileText(path)
	if err != nil {
		return tool.Output{}, fmt.Errorf("%w: %v", tool.ErrExecution, err)
	}
	if len(r.ReadRange) == 0 {
		return tool.TextOutput(content), nil
	}

	lines := strings.Split(content, "\n")
	if strings.HasSuffix(content, "\n") {
		lines = lines[:len(lines)-1]
	}
	start, end := lineRange(r.ReadRange, len(lines))
	if start > end || start > len(lines) {
		return tool.Output{}, fmt.Errorf("%w: readRange %v selects no lines of %d", tool.ErrValidation, r.ReadRange, len(lines))
	}
	return tool.TextOutput(strings.Join(lines[start-1:end], "\n")), nil
}

// lineRange converts a user range into inclusive 1-based bounds clamped
// to a file of n lines.
func lineRange(rng []int, n int) (start, end int) {
	start, end = rng[0], -1
	if len(rng) == 2 {
		end = rng[1]
	}
	if start < 0 {
		start = n + start + 1
	}
	if end < 0 {
		end = n + end + 1
	}
	start = max(start, 1)
	end = min(end, n)
	return start, end
}
