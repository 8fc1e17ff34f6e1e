package train

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
)

func reading(base time.Time, hour int, value float64, imputed bool) model.Reading {
	v := value
	return model.Reading{
		StationID: "st-001",
		Timestamp: base.Add(time.Duration(hour) * time.Hour),
		Value:     &v,
		IsImputed: imputed,
	}
}

func TestSegmentRuns(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("missing hour splits the run", func(t *testing.T) {
		rows := []model.Reading{
			reading(base, 0, 1, false),
			reading(base, 1, 2, false),
			// hour 2 absent
			reading(base, 3, 3, false),
			reading(base, 4, 4, false),
			reading(base, 5, 5, false),
		}
		runs, total := segmentRuns(rows)
		assert.Equal(t, [][]float64{{1, 2}, {3, 4, 5}}, runs)
		assert.Equal(t, 5, total)
	})

	t.Run("imputed reading splits the run and does not count", func(t *testing.T) {
		rows := []model.Reading{
			reading(base, 0, 1, false),
			reading(base, 1, 99, true),
			reading(base, 2, 3, false),
		}
		runs, total := segmentRuns(rows)
		assert.Equal(t, [][]float64{{1}, {3}}, runs)
		assert.Equal(t, 2, total)
	})

	t.Run("null value splits the run", func(t *testing.T) {
		rows := []model.Reading{
			reading(base, 0, 1, false),
			{StationID: "st-001", Timestamp: base.Add(time.Hour)},
			reading(base, 2, 3, false),
		}
		runs, total := segmentRuns(rows)
		assert.Equal(t, [][]float64{{1}, {3}}, runs)
		assert.Equal(t, 2, total)
	})

	t.Run("empty input", func(t *testing.T) {
		runs, total := segmentRuns(nil)
		assert.Empty(t, runs)
		assert.Zero(t, total)
	})
}

func TestSlidingWindows(t *testing.T) {
	runs := [][]float64{
		{1, 2, 3, 4, 5}, // 2 windows at n=3
		{6, 7, 8},       // too short, discarded
	}
	samples := slidingWindows(runs, 3)
	assert.Len(t, samples, 2)
	assert.Equal(t, []float64{1, 2, 3}, samples[0].window)
	assert.Equal(t, 4.0, samples[0].target)
	assert.Equal(t, []float64{2, 3, 4}, samples[1].window)
	assert.Equal(t, 5.0, samples[1].target)
}
