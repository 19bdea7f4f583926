// Package telemetry provides OpenTelemetry metrics and provider setup for
// toolgate.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	InvocationsName        = "toolgate.tool.invocations"
	DurationName           = "toolgate.tool.duration"
	AcceptanceRequiredName = "toolgate.acceptance.required"
	CancellationsName      = "toolgate.tool.cancellations"
	DiscoveryFailuresName  = "toolgate.discovery.failures"
)

const (
	defaultMeterName    = "github.com/felixgeelhaar/toolgate"
	defaultMeterVersion = "1.0.0"
)

// Recorder records invocation metrics.
type Recorder interface {
	RecordInvocation(ctx context.Context, toolName, status string, duration time.Duration)
	RecordAcceptanceRequired(ctx context.Context, toolName string, approved bool)
	RecordCancellation(ctx context.Context, toolName string)
	RecordDiscoveryFailure(ctx context.Context, source string)
}

// Metrics provides access to the toolgate instruments.
type Metrics struct {
	meter metric.Meter

	invocations        metric.Int64Counter
	acceptanceRequired metric.Int64Counter
	cancellations      metric.Int64Counter
	discoveryFailures  metric.Int64Counter
	duration           metric.Float64Histogram

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics.
type MetricsConfig struct {
	// MeterName is the name of the meter (default: "github.com/felixgeelhaar/toolgate").
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Provider overrides the global meter provider.
	Provider metric.MeterProvider
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    defaultMeterName,
		MeterVersion: defaultMeterVersion,
	}
}

// NewMetrics creates the instruments on the configured meter provider.
func NewMetrics(config MetricsConfig) *Metrics {
	if config.MeterName == "" {
		config.MeterName = defaultMeterName
	}
	provider := config.Provider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	m := &Metrics{
		meter: provider.Meter(
			config.MeterName,
			metric.WithInstrumentationVersion(config.MeterVersion),
		),
	}

	m.initOnce.Do(func() {
		m.initErr = m.initInstruments()
	})

	return m
}

func (m *Metrics) initInstruments() error {
	var err error

	m.invocations, err = m.meter.Int64Counter(
		InvocationsName,
		metric.WithDescription("Number of tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return err
	}

	m.acceptanceRequired, err = m.meter.Int64Counter(
		AcceptanceRequiredName,
		metric.WithDescription("Number of invocations gated on user acceptance"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return err
	}

	m.cancellations, err = m.meter.Int64Counter(
		CancellationsName,
		metric.WithDescription("Number of cancelled invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return err
	}

	m.discoveryFailures, err = m.meter.Int64Counter(
		DiscoveryFailuresName,
		metric.WithDescription("Number of failed remote tool discoveries"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return err
	}

	m.duration, err = m.meter.Float64Histogram(
		DurationName,
		metric.WithDescription("Duration of tool invocations"),
		metric.WithUnit("ms"),
	)
	return err
}

// Error returns any initialization error.
func (m *Metrics) Error() error {
	return m.initErr
}

// RecordInvocation records one finished invocation and its duration.
func (m *Metrics) RecordInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.String("status", status),
	)
	m.invocations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordAcceptanceRequired records an acceptance prompt and its outcome.
func (m *Metrics) RecordAcceptanceRequired(ctx context.Context, toolName string, approved bool) {
	m.acceptanceRequired.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.Bool("approved", approved),
	))
}

// RecordCancellation records a cancelled invocation.
func (m *Metrics) RecordCancellation(ctx context.Context, toolName string) {
	m.cancellations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", toolName),
	))
}

// RecordDiscoveryFailure records a remote source that failed to list its tools.
func (m *Metrics) RecordDiscoveryFailure(ctx context.Context, source string) {
	m.discoveryFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
	))
}

// NoopRecorder discards every measurement.
type NoopRecorder struct{}

// RecordInvocation is a no-op.
func (NoopRecorder) RecordInvocation(context.Context, string, string, time.Duration) {}

// RecordAcceptanceRequired is a no-op.
func (NoopRecorder) RecordAcceptanceRequired(context.Context, string, bool) {}

// RecordCancellation is a no-op.
func (NoopRecorder) RecordCancellation(context.Context, string) {}

// RecordDiscoveryFailure is a no-op.
func (NoopRecorder) RecordDiscoveryFailure(context.Context, string) {}

var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = NoopRecorder{}
)
