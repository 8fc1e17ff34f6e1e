package validate_test

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
	"github.com/tigerroll/gapfill/pkg/impute/engine/validate"
	"github.com/tigerroll/gapfill/pkg/impute/infrastructure/repository/inmemory"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	imputetest "github.com/tigerroll/gapfill/pkg/impute/test"
)

const stationID = "st-001"

// alternating flips between 5 and 15 every hour. Midpoint interpolation
// always lands on 10 and is off by 5; forward fill is off by 10. A model
// that inverts the last value is nearly exact.
func alternating(h int) float64 {
	if h%2 == 0 {
		return 5
	}
	return 15
}

func newValidator(t *testing.T, repo *inmemory.Repository, cfg *config.EngineConfig) (*validate.Validator, storage.ObjectStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "models")
	require.NoError(t, err)
	recorder := metrics.NewNoOpMetricRecorder()
	cache := predict.NewModelCache(store, time.Hour, recorder)
	return validate.NewValidator(repo, repo, repo, cache, cfg, recorder), store
}

// singleUnitModel builds a one-unit GRU whose update gate is saturated open,
// so the hidden state is tanh(0.1 * x_t) of the last input alone. The dense
// head then reads it out linearly: y = wOut * tanh(0.1 x) + bOut.
func singleUnitModel(t *testing.T, repo *inmemory.Repository, store storage.ObjectStore,
	cfg *config.EngineConfig, wOut, bOut float64) {
	t.Helper()

	network := train.NewNetwork([]int{1}, 0, 1)
	l := network.Layers[0]
	l.Wz[0][0], l.Uz[0][0], l.Bz[0] = 0, 0, 30 // z saturates at 1
	l.Wr[0][0], l.Ur[0][0], l.Br[0] = 0, 0, 0
	l.Wh[0][0], l.Uh[0][0], l.Bh[0] = 0.1, 0, 0
	network.WOut[0] = wOut
	network.BOut = bOut

	saved := &train.SavedModel{
		StationID:  stationID,
		Version:    1,
		WindowSize: cfg.ContextWindowSize,
		Scaler:     train.FitScaler([]float64{5, 15}),
		Network:    network,
	}
	blob, err := saved.Encode()
	require.NoError(t, err)
	objectName := train.ObjectName(stationID, 1)
	require.NoError(t, store.Put(context.Background(), objectName, blob))
	require.NoError(t, repo.Save(context.Background(), &model.ModelArtifact{
		StationID:  stationID,
		Version:    1,
		Status:     model.ArtifactPending,
		ObjectName: objectName,
		WindowSize: cfg.ContextWindowSize,
		TrainedAt:  time.Now().UTC(),
	}))
}

func TestValidator_CertifiesPredictiveModel(t *testing.T) {
	cfg := imputetest.NewEngineConfig()
	repo := imputetest.NewSeededRepository(stationID)
	imputetest.SeedHours(repo, stationID, 0, 200, alternating, nil)
	validator, store := newValidator(t, repo, cfg)
	// y = -10*tanh(0.1 x) + 1 inverts the scaled last value: the model
	// predicts the flip almost exactly.
	singleUnitModel(t, repo, store, cfg, -10, 1)
	ctx := context.Background()

	result, err := validator.Validate(ctx, stationID, imputetest.HourAt(0), imputetest.HourAt(199))
	require.NoError(t, err)

	assert.True(t, result.Certified)
	assert.Greater(t, result.SampleSize, 0)
	assert.Less(t, result.Model.RMSE, result.Linear.RMSE)
	assert.Greater(t, result.Model.R2, cfg.MinR2)
	assert.InDelta(t, 5.0, result.Linear.RMSE, 0.01)
	assert.InDelta(t, 10.0, result.FFill.RMSE, 0.01)

	artifact, err := repo.Find(ctx, stationID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ArtifactCertified, artifact.Status)

	logs := repo.ValidationLogs()
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Certified)
	assert.Equal(t, 1, logs[0].ModelVersion)
	assert.Equal(t, result.SampleSize, logs[0].SampleSize)
}

func TestValidator_RejectsWeakModel(t *testing.T) {
	cfg := imputetest.NewEngineConfig()
	repo := imputetest.NewSeededRepository(stationID)
	imputetest.SeedHours(repo, stationID, 0, 200, alternating, nil)
	validator, store := newValidator(t, repo, cfg)
	// y = 10*tanh(0.1 x) repeats the last value, which on an alternating
	// series is always wrong by the full swing.
	singleUnitModel(t, repo, store, cfg, 10, 0)
	ctx := context.Background()

	result, err := validator.Validate(ctx, stationID, imputetest.HourAt(0), imputetest.HourAt(199))
	require.NoError(t, err)

	assert.False(t, result.Certified)
	assert.Greater(t, result.Model.RMSE, result.Linear.RMSE)

	artifact, err := repo.Find(ctx, stationID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ArtifactRejected, artifact.Status)

	// A rejected newest version leaves the station with no usable model.
	usable, err := repo.LatestUsable(ctx, stationID)
	require.NoError(t, err)
	assert.Nil(t, usable)

	logs := repo.ValidationLogs()
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Certified)
}

func TestValidator_NoModel(t *testing.T) {
	cfg := imputetest.NewEngineConfig()
	repo := imputetest.NewSeededRepository(stationID)
	imputetest.SeedHours(repo, stationID, 0, 200, alternating, nil)
	validator, _ := newValidator(t, repo, cfg)

	_, err := validator.Validate(context.Background(), stationID, imputetest.HourAt(0), imputetest.HourAt(199))
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrModelUnavailable)
}

func TestValidator_NoCandidates(t *testing.T) {
	cfg := imputetest.NewEngineConfig()
	repo := imputetest.NewSeededRepository(stationID)
	// Too few readings for any position to carry a full context window.
	imputetest.SeedHours(repo, stationID, 0, 10, alternating, nil)
	validator, store := newValidator(t, repo, cfg)
	singleUnitModel(t, repo, store, cfg, -10, 1)

	_, err := validator.Validate(context.Background(), stationID, imputetest.HourAt(0), imputetest.HourAt(199))
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrInsufficientHistory)
}
