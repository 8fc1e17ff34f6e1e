package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"

	config "github.com/tigerroll/gapfill/pkg/impute/core/config"
	exception "github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	logger "github.com/tigerroll/gapfill/pkg/impute/support/util/logger"
)

const moduleName = "telemetry"

// Telemetry owns the OpenTelemetry providers of the process. When telemetry
// is disabled in the configuration it hands out no-op implementations, so
// callers never need to branch on the setting.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
}

// NewTelemetry builds the OTLP span and metric pipelines selected by the
// configuration and registers their shutdown with the fx lifecycle.
func NewTelemetry(lc fx.Lifecycle, cfg *config.Config) (*Telemetry, error) {
	tcfg := cfg.Gapfill.Telemetry
	if !tcfg.Enabled {
		logger.Debugf("Telemetry disabled, using no-op providers.")
		return &Telemetry{tracer: noop.NewTracerProvider().Tracer("gapfill")}, nil
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", tcfg.ServiceName),
	)

	ctx := context.Background()
	traceExp, err := newTraceExporter(ctx, tcfg)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindInternal, moduleName, "failed to create OTLP trace exporter", err)
	}
	metricExp, err := newMetricExporter(ctx, tcfg)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindInternal, moduleName, "failed to create OTLP metric exporter", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	t := &Telemetry{
		tracerProvider: tp,
		meterProvider:  mp,
		tracer:         tp.Tracer("gapfill"),
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return t.Shutdown(ctx)
		},
	})

	logger.Infof("Telemetry enabled (protocol=%s, endpoint=%s).", tcfg.Protocol, tcfg.Endpoint)
	return t, nil
}

func newTraceExporter(ctx context.Context, tcfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch tcfg.Protocol {
	case "grpc", "":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(tcfg.Endpoint)}
		if tcfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(tcfg.Endpoint)}
		if tcfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported telemetry protocol: %s", tcfg.Protocol)
	}
}

func newMetricExporter(ctx context.Context, tcfg config.TelemetryConfig) (sdkmetric.Exporter, error) {
	switch tcfg.Protocol {
	case "grpc", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(tcfg.Endpoint)}
		if tcfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(tcfg.Endpoint)}
		if tcfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported telemetry protocol: %s", tcfg.Protocol)
	}
}

// Tracer returns the span tracer of the process.
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// Meter returns a named meter from the process meter provider, or a no-op
// meter when telemetry is disabled.
func (t *Telemetry) Meter(name string) metric.Meter {
	if t.meterProvider == nil {
		return otel.GetMeterProvider().Meter(name)
	}
	return t.meterProvider.Meter(name)
}

// Shutdown flushes and stops the providers. Safe to call when disabled.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var firstErr error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
