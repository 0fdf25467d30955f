package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jfarrimo/frycook/pkg/environment"
)

// ServiceName identifies frycooker in exported spans.
const ServiceName = "frycooker"

// Tracer wraps an OpenTelemetry tracer provider. It satisfies engine.Tracer.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// TracerOption customizes NewTracer.
type TracerOption func(*tracerOptions)

type tracerOptions struct {
	out     io.Writer
	version string
}

// WithStdoutWriter sends the stdout exporter's output to w.
func WithStdoutWriter(w io.Writer) TracerOption {
	return func(o *tracerOptions) { o.out = w }
}

// WithVersion sets the service.version resource attribute.
func WithVersion(v string) TracerOption {
	return func(o *tracerOptions) { o.version = v }
}

// NewTracer creates a tracer for the configured exporter. With the "none"
// exporter spans are created but never exported.
func NewTracer(cfg environment.TracingSettings, opts ...TracerOption) (*Tracer, error) {
	o := tracerOptions{out: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Exporter == "" || cfg.Exporter == "none" {
		provider := sdktrace.NewTracerProvider()
		return &Tracer{provider: provider, tracer: provider.Tracer(ServiceName)}, nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(ServiceName),
			semconv.ServiceVersionKey.String(o.version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp":
		exporter, err = otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()),
			otlptracegrpc.WithDialOption(grpc.WithUserAgent(ServiceName)),
		)
	case "stdout":
		exporter, err = stdouttrace.New(
			stdouttrace.WithWriter(o.out),
			stdouttrace.WithPrettyPrint(),
		)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return &Tracer{provider: provider, tracer: provider.Tracer(ServiceName)}, nil
}

// Start begins a new span with the given name.
func (t *Tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName, opts...)
}

// ForceFlush exports all ended spans that have not yet been exported.
func (t *Tracer) ForceFlush(ctx context.Context) error {
	return t.provider.ForceFlush(ctx)
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}
