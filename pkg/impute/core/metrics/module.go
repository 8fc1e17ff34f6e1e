package metrics

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides the no-op metrics components.
// Applications that want real observability include the infrastructure
// metrics and telemetry modules instead of this one.
var Module = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
	fx.Provide(NewNoOpTracer),
)
