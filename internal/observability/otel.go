// Package observability wires up the OpenTelemetry tracer and meter
// providers used across the engine's HTTP surfaces.
package observability

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InitTracer wires a stdout-exporting tracer provider under serviceName and
// registers it globally. The returned func flushes and shuts it down.
func InitTracer(serviceName string) func() {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		log.Fatal(err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			"",
			attribute.String("service.name", serviceName),
		)),
	)

	otel.SetTracerProvider(tp)

	return func() {
		_ = tp.Shutdown(context.Background())
	}
}

// InitMeter wires an in-process meter provider with no reader or exporter
// attached, so instrument values recorded through it are not exported;
// GET /metrics serves the separate in-memory collector in
// internal/middleware. The provider is registered globally and the
// returned func shuts it down.
func InitMeter(serviceName string) func() {
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewWithAttributes(
			"",
			attribute.String("service.name", serviceName),
		)),
	)
	otel.SetMeterProvider(mp)

	return func() {
		_ = mp.Shutdown(context.Background())
	}
}

// Meter returns the global meter scoped to name, for instrument creation.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
