package window_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/engine/window"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	imputetest "github.com/tigerroll/gapfill/pkg/impute/test"
)

const station = "st-1"

func TestBuild_FullWindow(t *testing.T) {
	repo := imputetest.NewSeededRepository(station)
	imputetest.SeedHours(repo, station, 0, 48, imputetest.SineSeries(10, 3), nil)
	b := window.NewBuilder(repo, imputetest.NewEngineConfig())

	w, err := b.Build(context.Background(), station, imputetest.HourAt(30))
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, 24, w.Size())
	assert.Equal(t, imputetest.HourAt(6), w.Start)
	assert.Equal(t, imputetest.HourAt(29), w.End)
	assert.Equal(t, imputetest.HourAt(30), w.Target)

	// Consecutive window slots are exactly one hour apart by construction.
	assert.Equal(t, 23*time.Hour, w.End.Sub(w.Start))
}

func TestBuild_InsufficientHistoryIsNilNotError(t *testing.T) {
	repo := imputetest.NewSeededRepository(station)
	imputetest.SeedHours(repo, station, 0, 10, imputetest.SineSeries(10, 3), nil)
	b := window.NewBuilder(repo, imputetest.NewEngineConfig())

	w, err := b.Build(context.Background(), station, imputetest.HourAt(10))
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestBuild_GapInsideWindowRejectsWholeWindow(t *testing.T) {
	repo := imputetest.NewSeededRepository(station)
	skip := func(h int) bool { return h == 20 }
	imputetest.SeedHours(repo, station, 0, 48, imputetest.SineSeries(10, 3), skip)
	b := window.NewBuilder(repo, imputetest.NewEngineConfig())

	w, err := b.Build(context.Background(), station, imputetest.HourAt(30))
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestBuild_NullValueInsideWindowRejects(t *testing.T) {
	repo := imputetest.NewSeededRepository(station)
	imputetest.SeedHours(repo, station, 0, 48, imputetest.SineSeries(10, 3), nil)
	require.NoError(t, repo.UpsertReading(context.Background(), &model.Reading{
		StationID: station,
		Timestamp: imputetest.HourAt(15),
		Value:     nil,
	}))
	b := window.NewBuilder(repo, imputetest.NewEngineConfig())

	w, err := b.Build(context.Background(), station, imputetest.HourAt(30))
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestBuild_WindowEndsImmediatelyBeforeTarget(t *testing.T) {
	repo := imputetest.NewSeededRepository(station)
	// History stops two hours before the target: not contiguous with it.
	imputetest.SeedHours(repo, station, 0, 28, imputetest.SineSeries(10, 3), nil)
	b := window.NewBuilder(repo, imputetest.NewEngineConfig())

	w, err := b.Build(context.Background(), station, imputetest.HourAt(30))
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestBuild_StoreFailureIsAnError(t *testing.T) {
	failing := &imputetest.FailingStore{Err: errors.New("timeout")}
	b := window.NewBuilder(failing, imputetest.NewEngineConfig())

	w, err := b.Build(context.Background(), station, imputetest.HourAt(30))
	require.Error(t, err)
	assert.Nil(t, w)
	assert.True(t, errors.Is(err, exception.ErrStoreUnavailable))
}
