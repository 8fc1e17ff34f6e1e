package metrics

import (
	"context"
	"time"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordGapDetected does nothing.
func (r *NoOpMetricRecorder) RecordGapDetected(ctx context.Context, stationID string, class string, hours int) {
}

// RecordImputation does nothing.
func (r *NoOpMetricRecorder) RecordImputation(ctx context.Context, stationID string, clamped bool) {}

// RecordImputationSkipped does nothing.
func (r *NoOpMetricRecorder) RecordImputationSkipped(ctx context.Context, stationID string, reason string) {
}

// RecordTraining does nothing.
func (r *NoOpMetricRecorder) RecordTraining(ctx context.Context, stationID string, outcome string, duration time.Duration) {
}

// RecordValidation does nothing.
func (r *NoOpMetricRecorder) RecordValidation(ctx context.Context, stationID string, certified bool) {
}

// RecordCacheAccess does nothing.
func (r *NoOpMetricRecorder) RecordCacheAccess(ctx context.Context, hit bool) {}

// RecordSweep does nothing.
func (r *NoOpMetricRecorder) RecordSweep(ctx context.Context, kind string, duration time.Duration, succeeded, failed, skipped int) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartSweepSpan returns the context unchanged.
func (t *NoOpTracer) StartSweepSpan(ctx context.Context, kind string) (context.Context, func()) {
	return ctx, func() {}
}

// StartStationSpan returns the context unchanged.
func (t *NoOpTracer) StartStationSpan(ctx context.Context, operation, stationID string) (context.Context, func()) {
	return ctx, func() {}
}

// RecordError does nothing.
func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

var _ Tracer = (*NoOpTracer)(nil)
