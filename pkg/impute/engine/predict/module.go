package predict

import (
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/gapfill/pkg/impute/adapter/storage"
	"github.com/tigerroll/gapfill/pkg/impute/core/config"
	"github.com/tigerroll/gapfill/pkg/impute/core/metrics"
)

// newModelCache builds the TTL cache from the engine configuration.
func newModelCache(store storage.ObjectStore, cfg *config.EngineConfig, recorder metrics.MetricRecorder) *ModelCache {
	return NewModelCache(store, time.Duration(cfg.CacheTTLSeconds)*time.Second, recorder)
}

// Module is an Fx module that provides the Predictor and its model cache.
var Module = fx.Options(
	fx.Provide(newModelCache),
	fx.Provide(NewPredictor),
)
