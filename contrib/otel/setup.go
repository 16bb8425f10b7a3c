package otel

import (
	"context"
	"fmt"
	"io"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Exporter names accepted by Setup.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// Setup installs a global tracer provider for exporter and returns it with
// its shutdown function. Stdout spans are written to w as indented JSON.
// "none" and "" install a noop provider.
func Setup(ctx context.Context, exporter string, w io.Writer) (trace.TracerProvider, func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	switch exporter {
	case ExporterNone, "":
		tp := noop.NewTracerProvider()
		otelapi.SetTracerProvider(tp)
		return tp, noopShutdown, nil
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otelapi.SetTracerProvider(tp)
		return tp, tp.Shutdown, nil
	default:
		return nil, nil, fmt.Errorf("unsupported trace exporter: %s", exporter)
	}
}
