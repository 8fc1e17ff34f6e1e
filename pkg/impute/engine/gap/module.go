package gap

import "go.uber.org/fx"

// Module is an Fx module that provides the gap Detector.
var Module = fx.Options(
	fx.Provide(NewDetector),
)
