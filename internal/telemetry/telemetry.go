// Package telemetry sets up the process-wide tracer provider and exposes a
// tracer for wrapping batch execution and endpoint dials in spans, since
// otel is part of the ambient stack wired into the composition root even
// though SPEC_FULL.md has no dedicated tracing module.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// tracerName identifies spans emitted by this module in a shared trace
// backend alongside every other service's spans.
const tracerName = "github.com/arcfabric/storecore"

// NewProvider builds a TracerProvider with no exporter attached: spans are
// created and ended for their side effects (propagation, span-context
// logging) without shipping anywhere, since SPEC_FULL.md names no
// collector/exporter collaborator.
func NewProvider(serviceName string) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(
		semconv.ServiceName(serviceName),
	)
	return sdktrace.NewTracerProvider(sdktrace.WithResource(res))
}

// Tracer returns the package-wide tracer, registered against the global
// otel TracerProvider set by Register.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Register installs tp as the global TracerProvider so Tracer() and any
// other package's otel.Tracer(...) calls pick it up.
func Register(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
}

// StartSpan is a small convenience wrapper matching the call shape used by
// internal/batch and internal/pool: start a span, get back the derived
// context and an end func to defer.
func StartSpan(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := Tracer().Start(ctx, name)
	return ctx, func() { span.End() }
}
