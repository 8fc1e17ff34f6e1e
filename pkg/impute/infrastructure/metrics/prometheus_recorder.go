package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	metrics "github.com/tigerroll/gapfill/pkg/impute/core/metrics"
	logger "github.com/tigerroll/gapfill/pkg/impute/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Gap Metrics
	gapsDetected *prometheus.CounterVec

	// Imputation Metrics
	imputationCounter *prometheus.CounterVec
	imputationSkipped *prometheus.CounterVec

	// Training Metrics
	trainingCounter         *prometheus.CounterVec
	trainingDurationSeconds *prometheus.HistogramVec

	// Validation Metrics
	validationCounter *prometheus.CounterVec

	// Cache Metrics
	cacheAccessCounter *prometheus.CounterVec

	// Sweep Metrics
	sweepDurationSeconds *prometheus.HistogramVec
	sweepStationCounter  *prometheus.CounterVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		gapsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gapfill_gaps_detected_total",
			Help: "Total number of gaps detected by duration class.",
		}, []string{"station_id", "class"}),
		imputationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gapfill_imputations_total",
			Help: "Total number of imputed hours written.",
		}, []string{"station_id", "clamped"}),
		imputationSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gapfill_imputations_skipped_total",
			Help: "Total number of gap hours left unfilled by reason.",
		}, []string{"station_id", "reason"}),
		trainingCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gapfill_training_total",
			Help: "Total number of training attempts by outcome.",
		}, []string{"station_id", "outcome"}),
		trainingDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gapfill_training_duration_seconds",
			Help:    "Duration of training attempts.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"station_id", "outcome"}),
		validationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gapfill_validations_total",
			Help: "Total number of validation runs by verdict.",
		}, []string{"station_id", "verdict"}),
		cacheAccessCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gapfill_model_cache_access_total",
			Help: "Total number of model cache lookups.",
		}, []string{"result"}), // result: hit, miss
		sweepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gapfill_sweep_duration_seconds",
			Help:    "Duration of sweep executions.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"kind"}),
		sweepStationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gapfill_sweep_stations_total",
			Help: "Total number of stations processed by sweeps, by outcome.",
		}, []string{"kind", "outcome"}), // outcome: succeeded, failed, skipped
	}

	// Register all metrics with the registry.
	registry.MustRegister(r.gapsDetected)
	registry.MustRegister(r.imputationCounter)
	registry.MustRegister(r.imputationSkipped)
	registry.MustRegister(r.trainingCounter)
	registry.MustRegister(r.trainingDurationSeconds)
	registry.MustRegister(r.validationCounter)
	registry.MustRegister(r.cacheAccessCounter)
	registry.MustRegister(r.sweepDurationSeconds)
	registry.MustRegister(r.sweepStationCounter)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordGapDetected records one detected gap of the given duration class.
func (r *PrometheusRecorder) RecordGapDetected(ctx context.Context, stationID string, class string, hours int) {
	r.gapsDetected.WithLabelValues(stationID, class).Inc()
	logger.Debugf("Metrics: gap detected for station '%s' (class=%s, hours=%d).", stationID, class, hours)
}

// RecordImputation records one written imputation.
func (r *PrometheusRecorder) RecordImputation(ctx context.Context, stationID string, clamped bool) {
	r.imputationCounter.WithLabelValues(stationID, strconv.FormatBool(clamped)).Inc()
}

// RecordImputationSkipped records a gap hour left unfilled.
func (r *PrometheusRecorder) RecordImputationSkipped(ctx context.Context, stationID string, reason string) {
	r.imputationSkipped.WithLabelValues(stationID, reason).Inc()
}

// RecordTraining records one training attempt with its outcome and duration.
func (r *PrometheusRecorder) RecordTraining(ctx context.Context, stationID string, outcome string, duration time.Duration) {
	r.trainingCounter.WithLabelValues(stationID, outcome).Inc()
	r.trainingDurationSeconds.WithLabelValues(stationID, outcome).Observe(duration.Seconds())
	logger.Debugf("Metrics: training for station '%s' ended (outcome=%s). Duration: %.3fs", stationID, outcome, duration.Seconds())
}

// RecordValidation records one validation run and its verdict.
func (r *PrometheusRecorder) RecordValidation(ctx context.Context, stationID string, certified bool) {
	verdict := "rejected"
	if certified {
		verdict = "certified"
	}
	r.validationCounter.WithLabelValues(stationID, verdict).Inc()
}

// RecordCacheAccess records one artifact cache lookup.
func (r *PrometheusRecorder) RecordCacheAccess(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheAccessCounter.WithLabelValues(result).Inc()
}

// RecordSweep records a completed sweep with its aggregate counts.
func (r *PrometheusRecorder) RecordSweep(ctx context.Context, kind string, duration time.Duration, succeeded, failed, skipped int) {
	r.sweepDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
	r.sweepStationCounter.WithLabelValues(kind, "succeeded").Add(float64(succeeded))
	r.sweepStationCounter.WithLabelValues(kind, "failed").Add(float64(failed))
	r.sweepStationCounter.WithLabelValues(kind, "skipped").Add(float64(skipped))
	logger.Debugf("Metrics: %s sweep ended. Duration: %.3fs (succeeded=%d, failed=%d, skipped=%d)",
		kind, duration.Seconds(), succeeded, failed, skipped)
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
