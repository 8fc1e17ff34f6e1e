package telemetry

import (
	"go.uber.org/fx"

	metrics "github.com/tigerroll/gapfill/pkg/impute/core/metrics"
)

// Module is an Fx module that provides the OpenTelemetry providers and the
// span Tracer backed by them.
var Module = fx.Options(
	fx.Provide(NewTelemetry),
	// Provide OpenTelemetryTracer as a metrics.Tracer interface.
	fx.Provide(fx.Annotate(
		NewOpenTelemetryTracer,
		fx.As(new(metrics.Tracer)),
	)),
)
