// Package middleware provides composable middleware around tool invocation.
package middleware

import (
	"context"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// ExecutionContext carries one tool use through the chain.
type ExecutionContext struct {
	// Use is the agent's request.
	Use tool.Use
	// Definition is the registration entry the request resolved to.
	Definition *tool.Definition
	// Tool is the constructed, validated tool.
	Tool tool.Tool
	// TriggerID ties the invocation to its cancellation signal.
	TriggerID string
	// Verdict is the acceptance verdict that was applied.
	Verdict command.Validation
	// Sink receives incremental output.
	Sink tool.Sink
	// Vars carries values between middleware.
	Vars map[string]any
}

// MaxResponseSize returns the ceiling for this invocation's output.
func (ec *ExecutionContext) MaxResponseSize() int {
	if ec.Definition == nil {
		return tool.DefaultMaxResponseSize
	}
	return ec.Definition.MaxResponseSize()
}

// Handler invokes a tool and returns its output.
type Handler func(ctx context.Context, execCtx *ExecutionContext) (tool.Output, error)

// Middleware wraps a Handler with additional behavior.
type Middleware func(next Handler) Handler

// Chain composes middleware so that Chain(A, B, C) runs A -> B -> C -> handler.
func Chain(middlewares ...Middleware) Middleware {
	return func(final Handler) Handler {
		handler := final
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}

// Noop returns a middleware that passes through.
func Noop() Middleware {
	return func(next Handler) Handler {
		return next
	}
}

// Invoke is the innermost handler: it calls the tool itself.
func Invoke(ctx context.Context, execCtx *ExecutionContext) (tool.Output, error) {
	sink := execCtx.Sink
	if sink == nil {
		sink = tool.Discard
	}
	return execCtx.Tool.Invoke(ctx, sink)
}
