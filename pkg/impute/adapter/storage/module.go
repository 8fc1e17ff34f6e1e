package storage

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/gapfill/pkg/impute/core/config"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/logger"
)

// NewObjectStore builds the blob store selected by the storage configuration.
func NewObjectStore(lc fx.Lifecycle, cfg *config.Config) (ObjectStore, error) {
	sc := cfg.Gapfill.Storage
	switch sc.Type {
	case "local", "":
		logger.Debugf("Using local object store (base_dir: %s)", sc.BaseDir)
		return NewLocalStore(sc.BaseDir, sc.Prefix)
	case "gcs":
		logger.Debugf("Using GCS object store (bucket: %s)", sc.Bucket)
		store, err := NewGCSStore(context.Background(), sc.Bucket, sc.Prefix, sc.CredentialsFile)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return store.Close() },
		})
		return store, nil
	default:
		return nil, exception.NewEngineError(exception.KindInternal, "storage",
			fmt.Sprintf("unsupported storage type '%s'", sc.Type), nil)
	}
}

// Module is an Fx module that provides the configured ObjectStore.
var Module = fx.Options(
	fx.Provide(NewObjectStore),
)
