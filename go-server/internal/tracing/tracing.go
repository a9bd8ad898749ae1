package tracing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

type Options struct {
	// Endpoint of the OTLP/HTTP collector. Empty disables export.
	Endpoint    string
	ServiceName string
	Environment string
}

// InitTracer installs the global tracer provider and propagators and returns
// its shutdown function. pgx queries are traced through otelpgx once this ran.
func InitTracer(ctx context.Context, opts Options) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	if opts.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(StripProtocol(opts.Endpoint)),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := newResource(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tracerProvider)

	return tracerProvider.Shutdown, nil
}

// newResource leaves the service attributes schemaless so they merge with the
// SDK's telemetry attributes whatever semconv version the SDK ships.
func newResource(ctx context.Context, opts Options) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.DeploymentEnvironment(opts.Environment),
		),
	)
}

// StripProtocol reduces an endpoint to host:port. The exporter appends the
// /v1/traces path itself.
func StripProtocol(endpoint string) string {
	endpoint = strings.TrimSpace(strings.Trim(endpoint, `"`))

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if idx := strings.Index(endpoint, "/"); idx != -1 {
			return endpoint[:idx]
		}
		return endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		endpoint = strings.TrimPrefix(endpoint, "https://")
		return strings.TrimPrefix(endpoint, "http://")
	}
	return parsed.Host
}
