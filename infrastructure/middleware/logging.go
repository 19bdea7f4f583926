// Package middleware provides the built-in middleware wrapped around tool
// invocation.
package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/toolgate/domain/middleware"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/logging"
)

// LoggingConfig configures the logging middleware.
type LoggingConfig struct {
	// Logger overrides the package default logger.
	Logger *bolt.Logger
	// LogInput logs the tool input (may contain sensitive data).
	LogInput bool
	// LogOutput logs the tool output (may be large).
	LogOutput bool
}

// maxLoggedOutput bounds how much output LogOutput writes.
const maxLoggedOutput = 500

// Logging returns middleware that logs the start and finish of each
// invocation.
func Logging(cfg LoggingConfig) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Output, error) {
			logger := cfg.Logger
			if logger == nil {
				logger = logging.Get()
			}
			start := time.Now()

			entry := logging.NewEvent(logger.Info()).
				Add(logging.ToolName(execCtx.Use.Name)).
				Add(logging.ToolUseID(execCtx.Use.ID)).
				Add(logging.TriggerID(execCtx.TriggerID))

			if cfg.LogInput && len(execCtx.Use.Input) > 0 {
				entry = entry.Add(logging.Str("input", string(execCtx.Use.Input)))
			}

			entry.Msg("invoking tool")

			out, err := next(ctx, execCtx)
			duration := time.Since(start)

			if err != nil {
				logging.NewEvent(logger.Error()).
					Add(logging.ToolName(execCtx.Use.Name)).
					Add(logging.ToolUseID(execCtx.Use.ID)).
					Add(logging.ErrorField(err)).
					Add(logging.Duration(duration)).
					Msg("tool invocation failed")
				return out, err
			}

			done := logging.NewEvent(logger.Info()).
				Add(logging.ToolName(execCtx.Use.Name)).
				Add(logging.ToolUseID(execCtx.Use.ID)).
				Add(logging.Duration(duration)).
				Add(logging.Count(out.Len()))

			if cfg.LogOutput && out.Len() > 0 {
				output := out.Content
				if len(output) > maxLoggedOutput {
					output = output[:maxLoggedOutput] + "..."
				}
				done = done.Add(logging.Str("output", output))
			}

			done.Msg("tool invoked")
			return out, nil
		}
	}
}
