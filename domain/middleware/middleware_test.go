package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/middleware"
	"github.com/felixgeelhaar/toolgate/domain/tool"
)

type stubTool struct {
	out  string
	seen tool.Sink
}

func (s *stubTool) Name() string                       { return "stub" }
func (s *stubTool) Validate(context.Context) error     { return nil }
func (s *stubTool) QueueDescription(k tool.Sink) error { return k.End() }
func (s *stubTool) RequiresAcceptance(context.Context) command.Validation {
	return command.Allow()
}
func (s *stubTool) Invoke(_ context.Context, sink tool.Sink) (tool.Output, error) {
	s.seen = sink
	return tool.TextOutput(s.out), nil
}

func tracing(name string, order *[]string) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, ec *middleware.ExecutionContext) (tool.Output, error) {
			*order = append(*order, "before-"+name)
			out, err := next(ctx, ec)
			*order = append(*order, "after-"+name)
			return out, err
		}
	}
}

func TestChain(t *testing.T) {
	t.Parallel()

	var order []string
	final := func(context.Context, *middleware.ExecutionContext) (tool.Output, error) {
		order = append(order, "handler")
		return tool.TextOutput("done"), nil
	}

	handler := middleware.Chain(tracing("1", &order), tracing("2", &order))(final)
	out, err := handler(context.Background(), &middleware.ExecutionContext{})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if out.Content != "done" {
		t.Errorf("Content = %q, want %q", out.Content, "done")
	}

	want := []string{"before-1", "before-2", "handler", "after-2", "after-1"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestChain_ShortCircuit(t *testing.T) {
	t.Parallel()

	errBlocked := errors.New("blocked")
	block := func(middleware.Handler) middleware.Handler {
		return func(context.Context, *middleware.ExecutionContext) (tool.Output, error) {
			return tool.Output{}, errBlocked
		}
	}
	called := false
	final := func(context.Context, *middleware.ExecutionContext) (tool.Output, error) {
		called = true
		return tool.Output{}, nil
	}

	_, err := middleware.Chain(block)(final)(context.Background(), &middleware.ExecutionContext{})
	if !errors.Is(err, errBlocked) {
		t.Errorf("error = %v, want errBlocked", err)
	}
	if called {
		t.Error("final handler called after short circuit")
	}
}

func TestNoop(t *testing.T) {
	t.Parallel()

	final := func(context.Context, *middleware.ExecutionContext) (tool.Output, error) {
		return tool.TextOutput("x"), nil
	}
	out, _ := middleware.Noop()(final)(context.Background(), &middleware.ExecutionContext{})
	if out.Content != "x" {
		t.Errorf("Content = %q, want %q", out.Content, "x")
	}
}

func TestInvoke(t *testing.T) {
	t.Parallel()

	stub := &stubTool{out: "hello"}
	out, err := middleware.Invoke(context.Background(), &middleware.ExecutionContext{Tool: stub})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out.Content != "hello" {
		t.Errorf("Content = %q, want %q", out.Content, "hello")
	}
	if stub.seen != tool.Discard {
		t.Error("nil sink should be replaced with tool.Discard")
	}
}

func TestExecutionContext_MaxResponseSize(t *testing.T) {
	t.Parallel()

	ec := &middleware.ExecutionContext{}
	if got := ec.MaxResponseSize(); got != tool.DefaultMaxResponseSize {
		t.Errorf("MaxResponseSize() = %d, want %d", got, tool.DefaultMaxResponseSize)
	}

	def := tool.NewBuilder("list_directory").
		WithMaxResponseSize(1_600_000).
		WithConstructor(func(json.RawMessage) (tool.Tool, error) { return &stubTool{}, nil }).
		MustBuild()
	ec.Definition = def
	if got := ec.MaxResponseSize(); got != 1_600_000 {
		t.Errorf("MaxResponseSize() = %d, want 1600000", got)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	var order []string
	r := middleware.NewRegistry()
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
	r.Use(tracing("a", &order)).UseMany(tracing("b", &order))
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}

	handler := r.Handler(func(context.Context, *middleware.ExecutionContext) (tool.Output, error) {
		return tool.Output{}, nil
	})
	_, _ = handler(context.Background(), &middleware.ExecutionContext{})
	if len(order) != 4 || order[0] != "before-a" || order[1] != "before-b" {
		t.Errorf("order = %v", order)
	}
}
