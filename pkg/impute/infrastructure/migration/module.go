package migration

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides the schema migrator.
var Module = fx.Options(
	fx.Provide(NewMigrator),
)
