package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/toolgate/domain/middleware"
	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// TracingConfig configures the tracing middleware.
type TracingConfig struct {
	// TracerName is the name of the tracer to use.
	TracerName string

	// Tracer is a custom tracer to use. If nil, the global provider is used.
	Tracer trace.Tracer

	// RecordInput records the tool input as a span attribute.
	RecordInput bool

	// MaxAttributeSize limits the size of recorded attributes.
	MaxAttributeSize int

	// SpanNamePrefix is prepended to span names.
	SpanNamePrefix string

	// AdditionalAttributes are added to all spans.
	AdditionalAttributes []attribute.KeyValue
}

// DefaultTracingConfig returns the default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName:       "toolgate",
		RecordInput:      false,
		MaxAttributeSize: 1024,
		SpanNamePrefix:   "tool.",
	}
}

// Tracing returns middleware that creates an OpenTelemetry span per
// invocation.
func Tracing(cfg TracingConfig) middleware.Middleware {
	tracer := cfg.Tracer
	if tracer == nil {
		name := cfg.TracerName
		if name == "" {
			name = "toolgate"
		}
		tracer = otel.Tracer(name)
	}

	maxSize := cfg.MaxAttributeSize
	if maxSize <= 0 {
		maxSize = 1024
	}

	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Output, error) {
			ctx, span := tracer.Start(ctx, cfg.SpanNamePrefix+execCtx.Use.Name,
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			attrs := ToolSpanAttributes(execCtx)
			if cfg.RecordInput && len(execCtx.Use.Input) > 0 {
				attrs = append(attrs, attribute.String("tool.input", truncate(string(execCtx.Use.Input), maxSize)))
			}
			attrs = append(attrs, cfg.AdditionalAttributes...)
			span.SetAttributes(attrs...)

			out, err := next(ctx, execCtx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return out, err
			}

			span.SetStatus(codes.Ok, "")
			span.SetAttributes(
				attribute.String("tool.output_kind", string(out.Kind)),
				attribute.Int("tool.output_size", out.Len()),
			)
			return out, nil
		}
	}
}

// ToolSpanAttributes returns the standard attributes for an invocation span.
func ToolSpanAttributes(execCtx *middleware.ExecutionContext) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("tool.name", execCtx.Use.Name),
		attribute.String("tool.use_id", execCtx.Use.ID),
		attribute.String("toolgate.trigger_id", execCtx.TriggerID),
		attribute.Bool("tool.requires_acceptance", execCtx.Verdict.RequiresAcceptance),
	}
	if execCtx.Definition != nil {
		a := execCtx.Definition.Annotations()
		attrs = append(attrs,
			attribute.Bool("tool.read_only", a.ReadOnly),
			attribute.Bool("tool.destructive", a.Destructive),
			attribute.Bool("tool.remote", a.Remote),
			attribute.String("tool.risk_level", a.RiskLevel.String()),
		)
	}
	return attrs
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// truncate truncates a string to the specified length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...[truncated]"
}
