package tool_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/tool"
)

type echoTool struct {
	text string
}

func (e *echoTool) Name() string                       { return "echo" }
func (e *echoTool) Validate(context.Context) error     { return nil }
func (e *echoTool) QueueDescription(s tool.Sink) error { return s.End() }
func (e *echoTool) RequiresAcceptance(context.Context) command.Validation {
	return command.Allow()
}
func (e *echoTool) Invoke(context.Context, tool.Sink) (tool.Output, error) {
	return tool.TextOutput(e.text), nil
}

func newEcho(input json.RawMessage) (tool.Tool, error) {
	var in struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, err
	}
	return &echoTool{text: in.Text}, nil
}

func TestToolBuilder_Basic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		toolName    string
		constructor tool.Constructor
		wantErr     error
	}{
		{
			name:        "valid tool",
			toolName:    "echo",
			constructor: newEcho,
		},
		{
			name:        "empty name fails",
			toolName:    "",
			constructor: newEcho,
			wantErr:     tool.ErrEmptyName,
		},
		{
			name:     "missing constructor fails",
			toolName: "echo",
			wantErr:  tool.ErrNoConstructor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def, err := tool.NewBuilder(tt.toolName).
				WithDescription("Echo text").
				WithConstructor(tt.constructor).
				Build()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Build() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && def.Name() != tt.toolName {
				t.Errorf("Name() = %v, want %v", def.Name(), tt.toolName)
			}
		})
	}
}

func TestToolBuilder_Annotations(t *testing.T) {
	t.Parallel()

	def := tool.NewBuilder("writer").
		Destructive().
		RequiresApproval().
		WithTags("fs").
		WithConstructor(newEcho).
		MustBuild()

	a := def.Annotations()
	if !a.Destructive || !a.RequiresApproval {
		t.Errorf("Annotations() = %+v", a)
	}
	if a.RiskLevel != tool.RiskHigh {
		t.Errorf("RiskLevel = %v, want %v", a.RiskLevel, tool.RiskHigh)
	}
	if len(a.Tags) != 1 || a.Tags[0] != "fs" {
		t.Errorf("Tags = %v", a.Tags)
	}

	ro := tool.NewBuilder("reader").ReadOnly().Remote().WithConstructor(newEcho).MustBuild()
	if !ro.Annotations().ReadOnly || ro.Annotations().RiskLevel != tool.RiskNone || !ro.Annotations().Remote {
		t.Errorf("Annotations() = %+v", ro.Annotations())
	}
}

func TestDefinition_MaxResponseSize(t *testing.T) {
	t.Parallel()

	def := tool.NewBuilder("a").WithConstructor(newEcho).MustBuild()
	if got := def.MaxResponseSize(); got != tool.DefaultMaxResponseSize {
		t.Errorf("MaxResponseSize() = %v, want %v", got, tool.DefaultMaxResponseSize)
	}

	big := tool.NewBuilder("b").WithMaxResponseSize(1_600_000).WithConstructor(newEcho).MustBuild()
	if got := big.MaxResponseSize(); got != 1_600_000 {
		t.Errorf("MaxResponseSize() = %v, want 1600000", got)
	}
}

func TestDefinition_New(t *testing.T) {
	t.Parallel()

	def := tool.NewBuilder("echo").WithConstructor(newEcho).MustBuild()

	inst, err := def.New(json.RawMessage(`{"text":"hi"}`))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	out, err := inst.Invoke(context.Background(), tool.Discard)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out.Content != "hi" || out.Kind != tool.OutputText {
		t.Errorf("Invoke() = %+v", out)
	}

	_, err = def.New(json.RawMessage(`{not json`))
	if !errors.Is(err, tool.ErrValidation) {
		t.Errorf("New() error = %v, want %v", err, tool.ErrValidation)
	}
}

func TestToolBuilder_MustBuild_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("MustBuild() should panic on empty name")
		}
	}()
	tool.NewBuilder("").MustBuild()
}

func TestToolBuilder_WithInputSchema(t *testing.T) {
	t.Parallel()

	schema := tool.ObjectSchema(map[string]json.RawMessage{
		"text": tool.Prop("string", "Text to echo"),
	}, []string{"text"})

	def := tool.NewBuilder("echo").WithInputSchema(schema).WithConstructor(newEcho).MustBuild()
	if def.InputSchema().IsEmpty() {
		t.Error("InputSchema() should not be empty")
	}
}
