package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/felixgeelhaar/toolgate/domain/config"
)

// ErrUnknownExporter is returned for an unsupported exporter name.
var ErrUnknownExporter = errors.New("unknown telemetry exporter")

// Provider owns the SDK tracer and meter providers for one process.
type Provider struct {
	cfg            config.TelemetryConfig
	version        string
	out            io.Writer
	spanExporter   sdktrace.SpanExporter
	global         bool
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	reader         *sdkmetric.ManualReader
	metrics        *Metrics
	shutdownFuncs  []func(context.Context) error
}

// Option configures a Provider.
type Option func(*Provider)

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(p *Provider) {
		p.version = version
	}
}

// WithWriter sets where the stdout exporter writes (default: os.Stderr).
func WithWriter(w io.Writer) Option {
	return func(p *Provider) {
		p.out = w
	}
}

// WithSpanExporter replaces the configured exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(p *Provider) {
		p.spanExporter = exp
	}
}

// WithGlobal installs the providers as the otel globals.
func WithGlobal() Option {
	return func(p *Provider) {
		p.global = true
	}
}

// Setup creates the providers described by cfg. A disabled config yields
// a provider backed by the otel globals, which are no-ops unless set
// elsewhere.
func Setup(ctx context.Context, cfg config.TelemetryConfig, opts ...Option) (*Provider, error) {
	p := &Provider{
		cfg:     cfg,
		version: "dev",
		out:     os.Stderr,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.ServiceName == "" {
		p.cfg.ServiceName = "toolgate"
	}

	if !cfg.Enabled {
		p.metrics = NewMetrics(DefaultMetricsConfig())
		return p, nil
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(p.cfg.ServiceName),
		semconv.ServiceVersion(p.version),
	)

	if err := p.setupTracing(ctx, res); err != nil {
		return nil, err
	}
	p.setupMetrics(res)

	if p.global {
		otel.SetTracerProvider(p.tracerProvider)
		otel.SetMeterProvider(p.meterProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, res *resource.Resource) error {
	exporter := p.spanExporter
	if exporter == nil {
		switch p.cfg.Exporter {
		case config.ExporterOTLP:
			opts := []otlptracegrpc.Option{
				otlptracegrpc.WithEndpoint(p.cfg.Endpoint),
			}
			if p.cfg.Insecure {
				opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
				opts = append(opts, otlptracegrpc.WithInsecure())
			}
			exp, err := otlptracegrpc.New(ctx, opts...)
			if err != nil {
				return fmt.Errorf("create otlp exporter: %w", err)
			}
			exporter = exp

		case config.ExporterStdout:
			exp, err := stdouttrace.New(stdouttrace.WithWriter(p.out))
			if err != nil {
				return fmt.Errorf("create stdout exporter: %w", err)
			}
			exporter = exp

		case "", config.ExporterNone:

		default:
			return fmt.Errorf("%w: %s", ErrUnknownExporter, p.cfg.Exporter)
		}
	}

	var sampler sdktrace.Sampler
	rate := p.cfg.SampleRate
	if rate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if rate <= 0.0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(rate)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	p.shutdownFuncs = append(p.shutdownFuncs, p.tracerProvider.Shutdown)
	return nil
}

func (p *Provider) setupMetrics(res *resource.Resource) {
	p.reader = sdkmetric.NewManualReader()
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(p.reader),
	)

	cfg := DefaultMetricsConfig()
	cfg.MeterVersion = p.version
	cfg.Provider = p.meterProvider
	p.metrics = NewMetrics(cfg)
}

// Tracer returns a named tracer from the SDK provider or the global one.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tracerProvider == nil {
		return otel.Tracer(name)
	}
	return p.tracerProvider.Tracer(name)
}

// Metrics returns the toolgate instruments.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Collect gathers the current metric values. It returns an empty result
// when telemetry is disabled.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if p.reader == nil {
		return rm, nil
	}
	err := p.reader.Collect(ctx, &rm)
	return rm, err
}

// Shutdown flushes spans, writes final metric values for the stdout
// exporter, and releases the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error

	if p.reader != nil && p.cfg.Exporter == config.ExporterStdout {
		rm, err := p.Collect(ctx)
		if err != nil {
			errs = append(errs, err)
		} else if err := json.NewEncoder(p.out).Encode(rm); err != nil {
			errs = append(errs, err)
		}
	}

	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
