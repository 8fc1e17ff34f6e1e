package train

import "go.uber.org/fx"

// Module is an Fx module that provides the Trainer.
var Module = fx.Options(
	fx.Provide(NewTrainer),
)
