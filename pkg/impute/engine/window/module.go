package window

import "go.uber.org/fx"

// Module is an Fx module that provides the context window Builder.
var Module = fx.Options(
	fx.Provide(NewBuilder),
)
