package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/felixgeelhaar/toolgate/application"
	"github.com/felixgeelhaar/toolgate/domain/pack"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/audit"
)

func remoteDef(name string) *tool.Definition {
	return stubDefinition(&stubTool{name: name}, func(b *tool.Builder) *tool.Builder {
		return b.Remote().WithDescription("remote " + name)
	})
}

func TestNewRegistry_DuplicateBuiltin(t *testing.T) {
	t.Parallel()

	a := pack.NewBuilder("a").AddTools(stubDefinition(&stubTool{name: "dup"})).Build()
	b := pack.NewBuilder("b").AddTools(stubDefinition(&stubTool{name: "dup"})).Build()

	_, err := application.NewRegistry([]*pack.Pack{a, b})
	if !errors.Is(err, tool.ErrToolExists) {
		t.Errorf("NewRegistry() error = %v, want ErrToolExists", err)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	t.Parallel()

	st := &stubTool{name: "echo"}
	reg := newRegistry(t, stubDefinition(st))

	def, tl, resp := reg.Resolve(tool.Use{ID: "u1", Name: "echo", Input: json.RawMessage(`{}`)})
	if resp != nil {
		t.Fatalf("Resolve() response = %+v, want nil", resp)
	}
	if def.Name() != "echo" || tl.Name() != "echo" {
		t.Errorf("Resolve() = %s/%s, want echo/echo", def.Name(), tl.Name())
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	_, tl, resp := reg.Resolve(tool.Use{ID: "u2", Name: "missing"})
	if tl != nil {
		t.Error("Resolve() returned a tool for an unknown name")
	}
	if resp == nil {
		t.Fatal("Resolve() response = nil, want error response")
	}
	if !resp.IsError() {
		t.Errorf("Status = %s, want error", resp.Status)
	}
	if resp.ToolUseID != "u2" {
		t.Errorf("ToolUseID = %s, want u2", resp.ToolUseID)
	}
	if !errors.Is(resp.Err, tool.ErrUnknownTool) {
		t.Errorf("Err = %v, want ErrUnknownTool", resp.Err)
	}
}

func TestRegistry_ResolveInvalidInput(t *testing.T) {
	t.Parallel()

	schema := tool.ObjectSchema(map[string]json.RawMessage{
		"text": tool.Prop("string", "Text"),
	}, []string{"text"})
	failing := tool.NewBuilder("strict").
		WithInputSchema(schema).
		WithConstructor(func(input json.RawMessage) (tool.Tool, error) {
			var in struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, err
			}
			return &stubTool{name: "strict"}, nil
		}).
		MustBuild()
	reg := newRegistry(t, failing)

	tests := []struct {
		name  string
		input string
	}{
		{"missing required", `{}`},
		{"wrong type", `{"text":3}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, resp := reg.Resolve(tool.Use{ID: "u3", Name: "strict", Input: json.RawMessage(tt.input)})
			if resp == nil {
				t.Fatal("Resolve() response = nil, want error response")
			}
			if !errors.Is(resp.Err, tool.ErrValidation) {
				t.Errorf("Err = %v, want ErrValidation", resp.Err)
			}
			if resp.ToolUseID != "u3" {
				t.Errorf("ToolUseID = %s, want u3", resp.ToolUseID)
			}
		})
	}
}

func TestRegistry_Refresh(t *testing.T) {
	t.Parallel()

	logger := audit.NewMemoryLogger()
	p := pack.NewBuilder("builtin").AddTools(stubDefinition(&stubTool{name: "fs_read"})).Build()
	reg, err := application.NewRegistry([]*pack.Pack{p}, application.WithRegistryAudit(logger))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	ctx := context.Background()

	first := reg.Refresh(ctx, []*tool.Definition{remoteDef("alpha"), remoteDef("beta")})
	if !slices.Equal(first.Added, []string{"alpha", "beta"}) {
		t.Errorf("Added = %v, want [alpha beta]", first.Added)
	}

	second := reg.Refresh(ctx, []*tool.Definition{remoteDef("beta"), remoteDef("gamma")})
	if !slices.Equal(second.Replaced, []string{"beta"}) {
		t.Errorf("Replaced = %v, want [beta]", second.Replaced)
	}
	if !slices.Equal(second.Added, []string{"gamma"}) {
		t.Errorf("Added = %v, want [gamma]", second.Added)
	}
	if !slices.Equal(second.Pruned, []string{"alpha"}) {
		t.Errorf("Pruned = %v, want [alpha]", second.Pruned)
	}

	if reg.Has("alpha") {
		t.Error("alpha still resolves after being pruned")
	}
	if !reg.Has("beta") || !reg.Has("gamma") || !reg.Has("fs_read") {
		t.Error("expected beta, gamma and fs_read to resolve")
	}
	if !hasEvent(logger, audit.EventToolPruned) {
		t.Errorf("events = %v, want a tool_pruned event", eventTypes(logger))
	}

	var names []string
	for _, def := range reg.List() {
		names = append(names, def.Name())
	}
	if want := []string{"fs_read", "beta", "gamma"}; !slices.Equal(names, want) {
		t.Errorf("List() = %v, want %v", names, want)
	}
}

func TestRegistry_RefreshEmptyPrunesAll(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, stubDefinition(&stubTool{name: "static"}))
	ctx := context.Background()

	reg.Refresh(ctx, []*tool.Definition{remoteDef("one"), remoteDef("two")})
	result := reg.Refresh(ctx, nil)

	if !slices.Equal(result.Pruned, []string{"one", "two"}) {
		t.Errorf("Pruned = %v, want [one two]", result.Pruned)
	}
	if len(reg.Discovered()) != 0 {
		t.Errorf("Discovered() = %d tools, want 0", len(reg.Discovered()))
	}
	if !reg.Has("static") {
		t.Error("built-in tool was pruned")
	}
}

func TestRegistry_RefreshNeverShadowsBuiltin(t *testing.T) {
	t.Parallel()

	builtin := stubDefinition(&stubTool{name: "execute_bash"})
	reg := newRegistry(t, builtin)

	result := reg.Refresh(context.Background(), []*tool.Definition{remoteDef("execute_bash"), remoteDef("other")})

	if !slices.Equal(result.Skipped, []string{"execute_bash"}) {
		t.Errorf("Skipped = %v, want [execute_bash]", result.Skipped)
	}
	def, ok := reg.Get("execute_bash")
	if !ok || def != builtin {
		t.Error("built-in execute_bash was replaced by a discovered tool")
	}
	if !reg.IsBuiltin("execute_bash") || reg.IsBuiltin("other") {
		t.Error("IsBuiltin() mismatch")
	}

	// A later refresh never evicts the built-in.
	reg.Refresh(context.Background(), nil)
	if !reg.Has("execute_bash") {
		t.Error("built-in execute_bash was pruned")
	}
}

func TestRegistry_RefreshRejectsInvalidSchema(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	broken := tool.NewBuilder("broken").
		WithInputSchema(tool.NewSchema(json.RawMessage(`{"type":`))).
		WithConstructor(func(json.RawMessage) (tool.Tool, error) { return &stubTool{name: "broken"}, nil }).
		MustBuild()

	result := reg.Refresh(context.Background(), []*tool.Definition{broken, remoteDef("fine")})
	if !slices.Equal(result.Skipped, []string{"broken"}) {
		t.Errorf("Skipped = %v, want [broken]", result.Skipped)
	}
	if reg.Has("broken") {
		t.Error("tool with an invalid schema was registered")
	}
	if !reg.Has("fine") {
		t.Error("valid tool was not registered")
	}
}
