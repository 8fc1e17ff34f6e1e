package gorm

import "go.uber.org/fx"

// Module is an Fx module that provides the GORM-backed repositories.
var Module = fx.Options(
	fx.Provide(NewReadingRepository),
	fx.Provide(NewStationRepository),
	fx.Provide(NewArtifactRepository),
	fx.Provide(NewAuditRepository),
)
