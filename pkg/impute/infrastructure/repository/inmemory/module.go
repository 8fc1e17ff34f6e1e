package inmemory

import (
	"go.uber.org/fx"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/repository"
)

// Module provides the in-memory repository as every repository port.
var Module = fx.Options(
	fx.Provide(
		NewRepository,
		func(r *Repository) repository.ReadingRepository { return r },
		func(r *Repository) repository.StationRepository { return r },
		func(r *Repository) repository.ArtifactRepository { return r },
		func(r *Repository) repository.AuditRepository { return r },
	),
)
