package telemetry

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Miyamura80/CLI-Template/internal/version"
	usage "github.com/Miyamura80/CLI-Template/pkg/telemetry"
)

// Exporter construction is indirected so tests can substitute stubs.
var (
	stdoutTracerFactory = func() (sdktrace.SpanExporter, error) {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	stdoutMeterFactory = func() (sdkmetric.Exporter, error) {
		return stdoutmetric.New()
	}
	otlpGRPCFactory = func(ctx context.Context) (sdktrace.SpanExporter, error) {
		return otlptrace.New(ctx, otlptracegrpc.NewClient())
	}
	otlpHTTPFactory = func(ctx context.Context) (sdktrace.SpanExporter, error) {
		return otlptrace.New(ctx, otlptracehttp.NewClient())
	}
)

// ShutdownTimeout bounds provider flushes while the process exits.
const ShutdownTimeout = 5 * time.Second

func noopShutdown(context.Context) error { return nil }

// InitProvider installs global OpenTelemetry providers selected by
// MYCLI_OTEL_EXPORTER. Unset, "none", and unrecognized values keep the
// default no-op globals. MYCLI_TELEMETRY_DISABLED silences export
// regardless of the exporter setting.
func InitProvider(ctx context.Context) (func(context.Context) error, error) {
	if os.Getenv("MYCLI_TELEMETRY_DISABLED") != "" {
		return noopShutdown, nil
	}
	tracer, meter, err := exportersFor(ctx, os.Getenv("MYCLI_OTEL_EXPORTER"))
	if err != nil {
		return nil, err
	}
	if tracer == nil {
		return noopShutdown, nil
	}
	return installProvider(ctx, tracer, meter)
}

// exportersFor returns a nil tracer when the named exporter should leave
// the no-op globals in place. Only the stdout exporter carries metrics.
func exportersFor(ctx context.Context, kind string) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	switch kind {
	case "stdout":
		tracer, err := stdoutTracerFactory()
		if err != nil {
			return nil, nil, err
		}
		meter, err := stdoutMeterFactory()
		if err != nil {
			return nil, nil, err
		}
		return tracer, meter, nil
	case "otlp-grpc":
		tracer, err := otlpGRPCFactory(ctx)
		return tracer, nil, err
	case "otlp-http":
		tracer, err := otlpHTTPFactory(ctx)
		return tracer, nil, err
	default:
		return nil, nil, nil
	}
}

func installProvider(ctx context.Context, tracer sdktrace.SpanExporter, meter sdkmetric.Exporter) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("mycli"),
			semconv.ServiceVersionKey.String(version.Version),
			semconv.ServiceInstanceIDKey.String(instanceID()),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(tracer),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	var mp *sdkmetric.MeterProvider
	if meter != nil {
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(meter)),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
	}

	return func(ctx context.Context) error {
		if mp != nil {
			if err := mp.Shutdown(ctx); err != nil {
				return err
			}
		}
		return tp.Shutdown(ctx)
	}, nil
}

// instanceID carries the same anonymous digest as recorded usage events,
// so traces and events correlate without exposing the hostname.
// MYCLI_INSTANCE_ID replaces the hostname as hash input when set.
func instanceID() string {
	input := os.Getenv("MYCLI_INSTANCE_ID")
	if input == "" {
		if host, err := os.Hostname(); err == nil {
			input = host
		}
	}
	return usage.MachineID(input)
}
