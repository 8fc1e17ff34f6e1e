package export

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides the audit log Parquet exporter.
var Module = fx.Options(
	fx.Provide(NewAuditExporter),
)
