package resilience

import (
	"context"
	"encoding/json"

	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// Source guards a remote tool source. Listing is retried; calls are not,
// because a remote tool may not be idempotent.
type Source struct {
	next tool.RemoteSource
	list *Executor[[]tool.RemoteDefinition]
	call *Executor[*tool.RemoteResult]
}

var _ tool.RemoteSource = (*Source)(nil)

// NewSource wraps next with the given resilience settings.
func NewSource(next tool.RemoteSource, cfg ExecutorConfig) *Source {
	return &Source{
		next: next,
		list: NewExecutor[[]tool.RemoteDefinition](cfg),
		call: NewExecutor[*tool.RemoteResult](cfg),
	}
}

// Name returns the wrapped source's name.
func (s *Source) Name() string {
	return s.next.Name()
}

// ListTools lists the source's tools with retry.
func (s *Source) ListTools(ctx context.Context) ([]tool.RemoteDefinition, error) {
	return s.list.Execute(ctx, s.next.ListTools)
}

// CallTool calls a tool once through the breaker and bulkhead.
func (s *Source) CallTool(ctx context.Context, name string, args json.RawMessage) (*tool.RemoteResult, error) {
	return s.call.ExecuteOnce(ctx, func(ctx context.Context) (*tool.RemoteResult, error) {
		return s.next.CallTool(ctx, name, args)
	})
}

// State returns the circuit breaker state for listing and calling.
func (s *Source) State() (list, call string) {
	return s.list.CircuitBreakerState(), s.call.CircuitBreakerState()
}
