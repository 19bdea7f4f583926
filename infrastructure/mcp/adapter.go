package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/validation"
)

// RemoteTool is one invocation of a tool served by a remote source.
type RemoteTool struct {
	def    tool.RemoteDefinition
	source tool.RemoteSource
	schema *validation.Schema
	input  json.RawMessage
}

// NewDefinition builds the registration entry for a discovered tool. The
// schema is compiled up front; a schema that does not compile is rejected.
func NewDefinition(source tool.RemoteSource, def tool.RemoteDefinition, maxResponseSize int) (*tool.Definition, error) {
	schema := tool.NewSchema(def.InputSchema)
	compiled, err := validation.Compile(schema)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", source.Name(), def.Name, err)
	}

	return tool.NewBuilder(def.Name).
		WithDescription(def.Description).
		WithInputSchema(schema).
		WithRiskLevel(tool.RiskMedium).
		Remote().
		WithTags("mcp", source.Name()).
		WithMaxResponseSize(maxResponseSize).
		WithConstructor(func(input json.RawMessage) (tool.Tool, error) {
			return &RemoteTool{
				def:    def,
				source: source,
				schema: compiled,
				input:  input,
			}, nil
		}).
		Build()
}

// Name returns the remote tool name.
func (t *RemoteTool) Name() string {
	return t.def.Name
}

// Source returns the name of the serving source.
func (t *RemoteTool) Source() string {
	return t.source.Name()
}

// Validate checks the input against the discovered schema.
func (t *RemoteTool) Validate(context.Context) error {
	return t.schema.Validate(t.input)
}

// RequiresAcceptance always asks: the effect of a remote tool is opaque.
func (t *RemoteTool) RequiresAcceptance(context.Context) command.Validation {
	return command.RequireAcceptance("")
}

// QueueDescription previews the call and its arguments.
func (t *RemoteTool) QueueDescription(sink tool.Sink) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Running %s from %s", t.def.Name, t.source.Name())
	if len(t.input) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, t.input, "", "  "); err == nil {
			b.WriteString(" with the param:\n```json\n")
			b.Write(pretty.Bytes())
			b.WriteString("\n```")
		}
	}
	if err := sink.Write(b.String()); err != nil {
		return err
	}
	return sink.End()
}

// Invoke calls the tool on its source.
func (t *RemoteTool) Invoke(ctx context.Context, _ tool.Sink) (tool.Output, error) {
	result, err := t.source.CallTool(ctx, t.def.Name, t.input)
	if err != nil {
		return tool.Output{}, fmt.Errorf("%w: %s/%s: %v", tool.ErrExecution, t.source.Name(), t.def.Name, err)
	}

	text := joinText(result.Content)
	if result.IsError {
		if text == "" {
			text = "remote tool reported an error"
		}
		return tool.Output{}, fmt.Errorf("%w: %s/%s: %s", tool.ErrExecution, t.source.Name(), t.def.Name, text)
	}
	return tool.TextOutput(text), nil
}

func joinText(blocks []tool.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == "" || b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
