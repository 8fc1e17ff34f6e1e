package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	metrics "github.com/tigerroll/gapfill/pkg/impute/core/metrics"
)

// OpenTelemetryTracer is an implementation of metrics.Tracer that emits
// OpenTelemetry spans through the process telemetry providers.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a new instance of OpenTelemetryTracer.
func NewOpenTelemetryTracer(t *Telemetry) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: t.Tracer()}
}

// StartSweepSpan starts a span covering a whole sweep.
func (t *OpenTelemetryTracer) StartSweepSpan(ctx context.Context, kind string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "gapfill.sweep",
		trace.WithAttributes(attribute.String("sweep.kind", kind)))
	return ctx, func() { span.End() }
}

// StartStationSpan starts a span covering one station's unit of work.
func (t *OpenTelemetryTracer) StartStationSpan(ctx context.Context, operation, stationID string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "gapfill."+operation,
		trace.WithAttributes(attribute.String("station.id", stationID)))
	return ctx, func() { span.End() }
}

// RecordError records an error on the span carried by the context.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
