package application_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/toolgate/application"
	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/pack"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/audit"
)

// stubTool is a configurable tool for dispatcher tests.
type stubTool struct {
	name        string
	validateErr error
	verdict     command.Validation
	description string
	chunks      []string
	output      string
	invokeErr   error
	// blockUntilCancelled makes Invoke wait for its context to end.
	blockUntilCancelled bool
	started             chan struct{}

	mu      sync.Mutex
	invoked bool
}

func (s *stubTool) Name() string { return s.name }

func (s *stubTool) Validate(context.Context) error { return s.validateErr }

func (s *stubTool) RequiresAcceptance(context.Context) command.Validation { return s.verdict }

func (s *stubTool) QueueDescription(sink tool.Sink) error {
	desc := s.description
	if desc == "" {
		desc = "running " + s.name
	}
	if err := sink.Write(desc); err != nil {
		return err
	}
	return sink.End()
}

func (s *stubTool) Invoke(ctx context.Context, sink tool.Sink) (tool.Output, error) {
	s.mu.Lock()
	s.invoked = true
	s.mu.Unlock()

	for _, c := range s.chunks {
		if err := sink.Write(c); err != nil {
			return tool.Output{}, err
		}
	}
	if s.blockUntilCancelled {
		if s.started != nil {
			close(s.started)
		}
		select {
		case <-ctx.Done():
			return tool.Output{}, context.Cause(ctx)
		case <-time.After(10 * time.Second):
			return tool.TextOutput("not cancelled"), nil
		}
	}
	if s.invokeErr != nil {
		return tool.Output{}, s.invokeErr
	}
	return tool.TextOutput(s.output), nil
}

func (s *stubTool) wasInvoked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invoked
}

func stubDefinition(st *stubTool, configure ...func(*tool.Builder) *tool.Builder) *tool.Definition {
	b := tool.NewBuilder(st.name).
		WithDescription("stub " + st.name).
		WithConstructor(func(json.RawMessage) (tool.Tool, error) { return st, nil })
	for _, c := range configure {
		b = c(b)
	}
	return b.MustBuild()
}

func newRegistry(t *testing.T, defs ...*tool.Definition) *application.Registry {
	t.Helper()
	p := pack.NewBuilder("test").AddTools(defs...).Build()
	reg, err := application.NewRegistry([]*pack.Pack{p})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func eventTypes(logger *audit.MemoryLogger) []audit.EventType {
	var types []audit.EventType
	for _, e := range logger.Events() {
		types = append(types, e.EventType)
	}
	return types
}

func hasEvent(logger *audit.MemoryLogger, want audit.EventType) bool {
	for _, e := range logger.Events() {
		if e.EventType == want {
			return true
		}
	}
	return false
}

// stubSource is an in-memory RemoteSource.
type stubSource struct {
	name  string
	tools []tool.RemoteDefinition
	err   error

	mu    sync.Mutex
	lists int
	calls []string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) ListTools(context.Context) ([]tool.RemoteDefinition, error) {
	s.mu.Lock()
	s.lists++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.tools, nil
}

func (s *stubSource) CallTool(_ context.Context, name string, args json.RawMessage) (*tool.RemoteResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
	return &tool.RemoteResult{
		Content: []tool.ContentBlock{{Type: "text", Text: s.name + ":" + name + " " + string(args)}},
	}, nil
}

// countingRecorder counts recorded metrics.
type countingRecorder struct {
	mu                sync.Mutex
	invocations       map[string]int
	acceptances       int
	approved          int
	cancellations     int
	discoveryFailures []string
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{invocations: make(map[string]int)}
}

func (r *countingRecorder) RecordInvocation(_ context.Context, _ string, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations[status]++
}

func (r *countingRecorder) RecordAcceptanceRequired(_ context.Context, _ string, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acceptances++
	if approved {
		r.approved++
	}
}

func (r *countingRecorder) RecordCancellation(context.Context, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancellations++
}

func (r *countingRecorder) RecordDiscoveryFailure(_ context.Context, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discoveryFailures = append(r.discoveryFailures, source)
}
