// Package metrics defines the observability ports of the gapfill engine.
// Concrete implementations (Prometheus, OpenTelemetry) live in the
// infrastructure layer; the engine itself only ever talks to these
// interfaces, with no-op fallbacks provided by this package.
package metrics

import (
	"context"
	"time"
)

// MetricRecorder is an abstract interface for recording engine events.
// It facilitates integration with different metric backends without the
// engine depending on any of them.
type MetricRecorder interface {
	// RecordGapDetected records one detected gap of the given duration class.
	RecordGapDetected(ctx context.Context, stationID string, class string, hours int)

	// RecordImputation records one written imputation. clamped reports
	// whether the raw prediction was clamped to the physical range.
	RecordImputation(ctx context.Context, stationID string, clamped bool)

	// RecordImputationSkipped records a gap hour left unfilled, labelled by
	// the skip reason (e.g. "no_context", "model_unavailable", "long_gap").
	RecordImputationSkipped(ctx context.Context, stationID string, reason string)

	// RecordTraining records one training attempt with its outcome
	// ("trained", "insufficient_history", "failed") and duration.
	RecordTraining(ctx context.Context, stationID string, outcome string, duration time.Duration)

	// RecordValidation records one validation run and its verdict.
	RecordValidation(ctx context.Context, stationID string, certified bool)

	// RecordCacheAccess records one artifact cache lookup.
	RecordCacheAccess(ctx context.Context, hit bool)

	// RecordSweep records a completed sweep with its aggregate counts.
	RecordSweep(ctx context.Context, kind string, duration time.Duration, succeeded, failed, skipped int)
}

// Tracer is an abstract interface for span management around sweeps and
// per-station work.
type Tracer interface {
	// StartSweepSpan starts a span covering a whole sweep. The returned
	// function ends the span.
	StartSweepSpan(ctx context.Context, kind string) (context.Context, func())

	// StartStationSpan starts a span covering one station's unit of work.
	StartStationSpan(ctx context.Context, operation, stationID string) (context.Context, func())

	// RecordError records an error on the current span.
	RecordError(ctx context.Context, module string, err error)
}
