package observability

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	// Exporter is stdout or none.
	Exporter string
	// Writer receives stdout spans. Defaults to os.Stdout.
	Writer io.Writer
}

// InitTracing installs a global tracer provider and returns a function that
// flushes and stops it.
func InitTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled || cfg.Exporter == "none" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}
	if cfg.Exporter != "stdout" && cfg.Exporter != "" {
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	service := cfg.ServiceName
	if service == "" {
		service = "slew_interface"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", service),
		attribute.String("service.namespace", "w1xm"),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	log.Printf("tracing enabled, exporting %s spans to %s", service, cfg.Exporter)
	return tp.Shutdown, nil
}

// ShutdownWithTimeout calls shutdown with a bounded timeout and logs failure.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Printf("tracing shutdown failed: %v", err)
	}
}
