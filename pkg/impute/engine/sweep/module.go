package sweep

import "go.uber.org/fx"

// Module is an Fx module that provides the sweep Runner.
var Module = fx.Options(
	fx.Provide(NewRunner),
)
