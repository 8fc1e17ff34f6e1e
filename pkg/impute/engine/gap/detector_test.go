package gap_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/core/metrics"
	"github.com/tigerroll/gapfill/pkg/impute/engine/gap"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	imputetest "github.com/tigerroll/gapfill/pkg/impute/test"
)

const station = "st-1"

func seededDetector(t *testing.T, missing func(h int) bool, hours int) *gap.Detector {
	t.Helper()
	repo := imputetest.NewSeededRepository(station)
	imputetest.SeedHours(repo, station, 0, hours, imputetest.SineSeries(10, 3), missing)
	return gap.NewDetector(repo, repo, imputetest.NewEngineConfig(), metrics.NewNoOpMetricRecorder())
}

func TestDetect_NoGaps(t *testing.T) {
	d := seededDetector(t, nil, 48)
	gaps, err := d.Detect(context.Background(), station, imputetest.HourAt(0), imputetest.HourAt(47))
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestDetect_MergesAdjacentMissingHours(t *testing.T) {
	missing := func(h int) bool { return h >= 10 && h <= 12 }
	d := seededDetector(t, missing, 48)

	gaps, err := d.Detect(context.Background(), station, imputetest.HourAt(0), imputetest.HourAt(47))
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, imputetest.HourAt(10), gaps[0].Start)
	assert.Equal(t, imputetest.HourAt(12), gaps[0].End)
	assert.Equal(t, 3, gaps[0].DurationHours())
	assert.Equal(t, model.GapShort, gaps[0].Class)
}

func TestDetect_NullValueCountsAsMissing(t *testing.T) {
	repo := imputetest.NewSeededRepository(station)
	imputetest.SeedHours(repo, station, 0, 24, imputetest.SineSeries(10, 3), nil)
	// Null out one hour: the row exists but carries no value.
	require.NoError(t, repo.UpsertReading(context.Background(), &model.Reading{
		StationID: station,
		Timestamp: imputetest.HourAt(5),
		Value:     nil,
	}))
	d := gap.NewDetector(repo, repo, imputetest.NewEngineConfig(), metrics.NewNoOpMetricRecorder())

	gaps, err := d.Detect(context.Background(), station, imputetest.HourAt(0), imputetest.HourAt(23))
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, imputetest.HourAt(5), gaps[0].Start)
	assert.Equal(t, imputetest.HourAt(5), gaps[0].End)
}

func TestDetect_ClassBoundariesAreInclusive(t *testing.T) {
	cases := []struct {
		name  string
		hours int
		class model.GapClass
	}{
		{"1h is short", 1, model.GapShort},
		{"3h is short", 3, model.GapShort},
		{"4h is medium", 4, model.GapMedium},
		{"24h is medium", 24, model.GapMedium},
		{"25h is long", 25, model.GapLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			missing := func(h int) bool { return h >= 30 && h < 30+tc.hours }
			d := seededDetector(t, missing, 100)

			gaps, err := d.Detect(context.Background(), station, imputetest.HourAt(0), imputetest.HourAt(99))
			require.NoError(t, err)
			require.Len(t, gaps, 1)
			assert.Equal(t, tc.hours, gaps[0].DurationHours())
			assert.Equal(t, tc.class, gaps[0].Class)
		})
	}
}

func TestDetect_GapOpenAtRangeEnd(t *testing.T) {
	missing := func(h int) bool { return h >= 20 }
	d := seededDetector(t, missing, 24)

	gaps, err := d.Detect(context.Background(), station, imputetest.HourAt(0), imputetest.HourAt(23))
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, imputetest.HourAt(20), gaps[0].Start)
	assert.Equal(t, imputetest.HourAt(23), gaps[0].End)
}

func TestDetect_MultipleGaps(t *testing.T) {
	missing := func(h int) bool { return h == 2 || (h >= 10 && h <= 15) }
	d := seededDetector(t, missing, 48)

	gaps, err := d.Detect(context.Background(), station, imputetest.HourAt(0), imputetest.HourAt(47))
	require.NoError(t, err)
	require.Len(t, gaps, 2)
	assert.Equal(t, model.GapShort, gaps[0].Class)
	assert.Equal(t, model.GapMedium, gaps[1].Class)
}

func TestScan_IsRestartable(t *testing.T) {
	missing := func(h int) bool { return h == 2 || h == 7 }
	d := seededDetector(t, missing, 24)

	scanner, err := d.Scan(context.Background(), station, imputetest.HourAt(0), imputetest.HourAt(23))
	require.NoError(t, err)

	count := 0
	for _, ok := scanner.Next(); ok; _, ok = scanner.Next() {
		count++
	}
	assert.Equal(t, 2, count)

	scanner.Reset()
	first, ok := scanner.Next()
	require.True(t, ok)
	assert.Equal(t, imputetest.HourAt(2), first.Start)
}

func TestScan_InvalidRange(t *testing.T) {
	d := seededDetector(t, nil, 24)
	_, err := d.Scan(context.Background(), station, imputetest.HourAt(10), imputetest.HourAt(5))
	assert.Error(t, err)
}

func TestScan_UnknownStation(t *testing.T) {
	d := seededDetector(t, nil, 24)
	_, err := d.Scan(context.Background(), "nope", imputetest.HourAt(0), imputetest.HourAt(5))
	assert.Error(t, err)
}

func TestScan_StoreUnavailable(t *testing.T) {
	failing := &imputetest.FailingStore{Err: errors.New("connection refused")}
	d := gap.NewDetector(failing, failing, imputetest.NewEngineConfig(), metrics.NewNoOpMetricRecorder())

	_, err := d.Scan(context.Background(), station, imputetest.HourAt(0), imputetest.HourAt(5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrStoreUnavailable))
}
