package metrics

import (
	"go.uber.org/fx"

	metrics "github.com/tigerroll/gapfill/pkg/impute/core/metrics"
)

// Module is an Fx module that provides the Prometheus-backed MetricRecorder.
// The span Tracer comes from the telemetry module, which owns the
// OpenTelemetry SDK setup.
var Module = fx.Options(
	// Provide PrometheusRecorder as a metrics.MetricRecorder interface.
	fx.Provide(fx.Annotate(
		NewPrometheusRecorder,
		fx.As(new(metrics.MetricRecorder)),
	)),
)
