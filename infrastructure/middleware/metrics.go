package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/toolgate/domain/middleware"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/telemetry"
)

// Invocation statuses recorded as the status attribute.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Metrics returns middleware that records each invocation on recorder.
// A nil recorder disables recording.
func Metrics(recorder telemetry.Recorder) middleware.Middleware {
	if recorder == nil {
		recorder = telemetry.NoopRecorder{}
	}

	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Output, error) {
			start := time.Now()
			out, err := next(ctx, execCtx)

			status := StatusFor(err)
			recorder.RecordInvocation(ctx, execCtx.Use.Name, status, time.Since(start))
			if status == StatusCancelled {
				recorder.RecordCancellation(ctx, execCtx.Use.Name)
			}
			return out, err
		}
	}
}

// StatusFor maps an invocation error to its recorded status.
func StatusFor(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, tool.ErrCancelled), errors.Is(err, context.Canceled):
		return StatusCancelled
	default:
		return StatusError
	}
}
