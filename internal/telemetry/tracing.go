package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/wb-go/wbf/zlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"

	"github.com/aliskhannn/image-converter/internal/config"
)

// Span exporters selectable through telemetry.exporter.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Tracer owns the process-wide tracer provider. A Tracer built with the
// "none" exporter keeps the global no-op provider and has nothing to flush.
type Tracer struct {
	provider *sdktrace.TracerProvider
	exporter string
}

// NewTracer builds the span exporter named in cfg and registers a tracer
// provider for it as the global one. W3C trace context propagation is
// installed either way so incoming traceparent headers are honoured.
func NewTracer(ctx context.Context, cfg config.Telemetry) (*Tracer, error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	name := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if name == "" {
		name = ExporterNone
	}

	exp, err := newExporter(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		zlog.Logger.Info().Msg("span export disabled")
		return &Tracer{exporter: name}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to describe service for tracing: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)

	zlog.Logger.Info().
		Str("exporter", name).
		Float64("sample_ratio", cfg.SampleRatio).
		Msg("span export enabled")

	return &Tracer{provider: tp, exporter: name}, nil
}

// Exporter reports which exporter the tracer was built with.
func (t *Tracer) Exporter() string {
	return t.exporter
}

// Enabled reports whether spans leave the process.
func (t *Tracer) Enabled() bool {
	return t != nil && t.provider != nil
}

// Shutdown flushes buffered spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}

	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to flush spans: %w", err)
	}

	return nil
}

func newExporter(ctx context.Context, name string, cfg config.Telemetry) (sdktrace.SpanExporter, error) {
	switch name {
	case ExporterNone:
		return nil, nil

	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout span exporter: %w", err)
		}
		return exp, nil

	case ExporterOTLP:
		endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
		if endpoint == "" {
			return nil, fmt.Errorf("telemetry.otlp_endpoint is required for the %s exporter", ExporterOTLP)
		}

		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}

		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp span exporter: %w", err)
		}
		return exp, nil

	default:
		return nil, fmt.Errorf("unknown span exporter %q", cfg.Exporter)
	}
}

// sampler follows the caller's sampling decision and samples root spans at
// ratio. Ratios at or above 1 sample everything; non-positive ones nothing.
func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
