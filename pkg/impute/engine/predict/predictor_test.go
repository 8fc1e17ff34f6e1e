package predict_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/gapfill/pkg/impute/adapter/storage"
	"github.com/tigerroll/gapfill/pkg/impute/core/config"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/core/metrics"
	"github.com/tigerroll/gapfill/pkg/impute/engine/predict"
	"github.com/tigerroll/gapfill/pkg/impute/engine/train"
	"github.com/tigerroll/gapfill/pkg/impute/engine/window"
	"github.com/tigerroll/gapfill/pkg/impute/infrastructure/repository/inmemory"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	imputetest "github.com/tigerroll/gapfill/pkg/impute/test"
)

const stationID = "st-001"

func newPredictor(t *testing.T, repo *inmemory.Repository, cfg *config.EngineConfig) (*predict.Predictor, storage.ObjectStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "models")
	require.NoError(t, err)
	recorder := metrics.NewNoOpMetricRecorder()
	cache := predict.NewModelCache(store, time.Hour, recorder)
	builder := window.NewBuilder(repo, cfg)
	return predict.NewPredictor(repo, repo, repo, builder, cache, cfg, recorder), store
}

// installModel persists an artifact whose network always predicts bias,
// regardless of input. The scaler is the identity over [0, 1].
func installModel(t *testing.T, repo *inmemory.Repository, store storage.ObjectStore,
	cfg *config.EngineConfig, version int, bias float64, status model.ArtifactStatus) {
	t.Helper()
	ctx := context.Background()

	network := train.NewNetwork([]int{4}, 0, 1)
	for i := range network.WOut {
		network.WOut[i] = 0
	}
	network.BOut = bias

	saved := &train.SavedModel{
		StationID:  stationID,
		Version:    version,
		WindowSize: cfg.ContextWindowSize,
		Scaler:     train.FitScaler([]float64{0, 1}),
		Network:    network,
	}
	blob, err := saved.Encode()
	require.NoError(t, err)
	objectName := train.ObjectName(stationID, version)
	require.NoError(t, store.Put(ctx, objectName, blob))
	require.NoError(t, repo.Register(ctx, &model.Station{ID: stationID, Name: stationID}))
	require.NoError(t, saveArtifact(repo, version, objectName, cfg.ContextWindowSize, status))
}

func saveArtifact(repo *inmemory.Repository, version int, objectName string, windowSize int, status model.ArtifactStatus) error {
	return repo.Save(context.Background(), &model.ModelArtifact{
		StationID:  stationID,
		Version:    version,
		Status:     status,
		ObjectName: objectName,
		WindowSize: windowSize,
		TrainedAt:  time.Now().UTC(),
		TrainRMSE:  0.5,
		TrainMAE:   0.4,
		TrainR2:    0.8,
	})
}

func TestPredictor_Impute(t *testing.T) {
	cfg := imputetest.NewEngineConfig()
	repo := imputetest.NewSeededRepository(stationID)
	imputetest.SeedHours(repo, stationID, 0, 24, imputetest.SineSeries(10, 4), nil)
	predictor, store := newPredictor(t, repo, cfg)
	installModel(t, repo, store, cfg, 1, 5.0, model.ArtifactPending)
	ctx := context.Background()

	target := imputetest.HourAt(24)
	result, err := predictor.Impute(ctx, stationID, target)
	require.NoError(t, err)

	assert.Equal(t, 5.0, result.Value)
	assert.Equal(t, 1, result.ModelVersion)
	assert.False(t, result.Clamped)
	assert.Equal(t, 0.5, result.ErrorBound)

	reading, err := repo.GetReading(ctx, stationID, target)
	require.NoError(t, err)
	require.NotNil(t, reading)
	require.NotNil(t, reading.Value)
	assert.Equal(t, 5.0, *reading.Value)
	assert.True(t, reading.IsImputed)
	require.NotNil(t, reading.ModelVersion)
	assert.Equal(t, 1, *reading.ModelVersion)

	entry, err := repo.ActiveImputation(ctx, stationID, target)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, model.Parameter, entry.Parameter)
	assert.Equal(t, "recurrent_model", entry.Method)
	assert.Equal(t, imputetest.HourAt(0), entry.WindowStart)
	assert.Equal(t, imputetest.HourAt(23), entry.WindowEnd)
	assert.Equal(t, string(model.ArtifactPending), entry.ModelStatus)
	require.NotNil(t, entry.ErrorBound)
	assert.Equal(t, 0.5, *entry.ErrorBound)
}

func TestPredictor_ImputeIsIdempotent(t *testing.T) {
	cfg := imputetest.NewEngineConfig()
	repo := imputetest.NewSeededRepository(stationID)
	imputetest.SeedHours(repo, stationID, 0, 24, imputetest.SineSeries(10, 4), nil)
	predictor, store := newPredictor(t, repo, cfg)
	installModel(t, repo, store, cfg, 1, 5.0, model.ArtifactPending)
	ctx := context.Background()
	target := imputetest.HourAt(24)

	first, err := predictor.Impute(ctx, stationID, target)
	require.NoError(t, err)
	second, err := predictor.Impute(ctx, stationID, target)
	require.NoError(t, err)
	assert.Equal(t, first.Value, second.Value)

	// The prior audit row is superseded, never deleted.
	all, err := repo.ListImputations(ctx, stationID, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotNil(t, all[0].SupersededAt)
	assert.Nil(t, all[1].SupersededAt)
}

func TestPredictor_ClampsToPhysicalRange(t *testing.T) {
	testCases := []struct {
		name string
		bias float64
		want float64
	}{
		{"above ceiling", 500.0, 200.0},
		{"below floor", -50.0, 0.0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := imputetest.NewEngineConfig()
			repo := imputetest.NewSeededRepository(stationID)
			imputetest.SeedHours(repo, stationID, 0, 24, imputetest.SineSeries(10, 4), nil)
			predictor, store := newPredictor(t, repo, cfg)
			installModel(t, repo, store, cfg, 1, tc.bias, model.ArtifactPending)

			result, err := predictor.Impute(context.Background(), stationID, imputetest.HourAt(24))
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Value)
			assert.True(t, result.Clamped)

			entry, err := repo.ActiveImputation(context.Background(), stationID, imputetest.HourAt(24))
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.True(t, entry.Clamped)
		})
	}
}

func TestPredictor_NoUsableModel(t *testing.T) {
	cfg := imputetest.NewEngineConfig()

	t.Run("no model at all", func(t *testing.T) {
		repo := imputetest.NewSeededRepository(stationID)
		imputetest.SeedHours(repo, stationID, 0, 24, imputetest.SineSeries(10, 4), nil)
		predictor, _ := newPredictor(t, repo, cfg)

		_, err := predictor.Impute(context.Background(), stationID, imputetest.HourAt(24))
		require.Error(t, err)
		assert.ErrorIs(t, err, exception.ErrModelUnavailable)
		assert.True(t, exception.IsExpectedOutcome(err))
	})

	t.Run("only rejected versions", func(t *testing.T) {
		repo := imputetest.NewSeededRepository(stationID)
		imputetest.SeedHours(repo, stationID, 0, 24, imputetest.SineSeries(10, 4), nil)
		predictor, store := newPredictor(t, repo, cfg)
		installModel(t, repo, store, cfg, 1, 5.0, model.ArtifactRejected)

		_, err := predictor.Impute(context.Background(), stationID, imputetest.HourAt(24))
		require.Error(t, err)
		assert.ErrorIs(t, err, exception.ErrModelUnavailable)
	})

	t.Run("metadata without blob", func(t *testing.T) {
		repo := imputetest.NewSeededRepository(stationID)
		imputetest.SeedHours(repo, stationID, 0, 24, imputetest.SineSeries(10, 4), nil)
		predictor, _ := newPredictor(t, repo, cfg)
		require.NoError(t, saveArtifact(repo, 1, "st-001/v1.json", cfg.ContextWindowSize, model.ArtifactPending))

		_, err := predictor.Impute(context.Background(), stationID, imputetest.HourAt(24))
		require.Error(t, err)
		assert.ErrorIs(t, err, exception.ErrModelUnavailable)
	})
}

func TestPredictor_NoContext(t *testing.T) {
	cfg := imputetest.NewEngineConfig()
	repo := imputetest.NewSeededRepository(stationID)
	// Only 10 hours of history before the target.
	imputetest.SeedHours(repo, stationID, 14, 24, imputetest.SineSeries(10, 4), nil)
	predictor, store := newPredictor(t, repo, cfg)
	installModel(t, repo, store, cfg, 1, 5.0, model.ArtifactPending)

	_, err := predictor.Impute(context.Background(), stationID, imputetest.HourAt(24))
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrNoContext)
	assert.True(t, exception.IsExpectedOutcome(err))
}

func TestPredictor_RefusesObservedSlot(t *testing.T) {
	cfg := imputetest.NewEngineConfig()
	repo := imputetest.NewSeededRepository(stationID)
	imputetest.SeedHours(repo, stationID, 0, 25, imputetest.SineSeries(10, 4), nil)
	predictor, store := newPredictor(t, repo, cfg)
	installModel(t, repo, store, cfg, 1, 5.0, model.ArtifactPending)
	ctx := context.Background()
	target := imputetest.HourAt(24)

	_, err := predictor.Impute(ctx, stationID, target)
	require.Error(t, err)
	assert.False(t, exception.IsExpectedOutcome(err))

	// The observed value is untouched.
	reading, err := repo.GetReading(ctx, stationID, target)
	require.NoError(t, err)
	require.NotNil(t, reading)
	assert.False(t, reading.IsImputed)
}

func TestPredictor_RollbackAndReimpute(t *testing.T) {
	cfg := imputetest.NewEngineConfig()
	repo := imputetest.NewSeededRepository(stationID)
	imputetest.SeedHours(repo, stationID, 0, 24, imputetest.SineSeries(10, 4), nil)
	predictor, store := newPredictor(t, repo, cfg)
	installModel(t, repo, store, cfg, 1, 5.0, model.ArtifactPending)
	ctx := context.Background()
	target := imputetest.HourAt(24)

	first, err := predictor.Impute(ctx, stationID, target)
	require.NoError(t, err)

	require.NoError(t, predictor.Rollback(ctx, stationID, target))

	reading, err := repo.GetReading(ctx, stationID, target)
	require.NoError(t, err)
	assert.True(t, reading.Missing())

	active, err := repo.ActiveImputation(ctx, stationID, target)
	require.NoError(t, err)
	assert.Nil(t, active)

	// The superseded row survives for audit.
	all, err := repo.ListImputations(ctx, stationID, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotNil(t, all[0].SupersededAt)

	// Re-imputing with the same model and window reproduces the value.
	second, err := predictor.Impute(ctx, stationID, target)
	require.NoError(t, err)
	assert.Equal(t, first.Value, second.Value)
}

func TestPredictor_RollbackWithoutImputation(t *testing.T) {
	cfg := imputetest.NewEngineConfig()
	repo := imputetest.NewSeededRepository(stationID)
	predictor, _ := newPredictor(t, repo, cfg)

	err := predictor.Rollback(context.Background(), stationID, imputetest.HourAt(24))
	require.Error(t, err)
	assert.False(t, exception.IsExpectedOutcome(err))
}
