// Package window assembles the fixed-length context windows consumed by the
// predictor. A window is either complete and strictly contiguous or it is
// not returned at all; degraded windows are never produced.
package window

import (
	"context"
	"time"

	"github.com/tigerroll/gapfill/pkg/impute/core/config"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/repository"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
)

const moduleName = "window"

// Builder assembles context windows from the readings store.
type Builder struct {
	readings repository.ReadingRepository
	cfg      *config.EngineConfig
}

// NewBuilder creates a new Builder.
func NewBuilder(readings repository.ReadingRepository, cfg *config.EngineConfig) *Builder {
	return &Builder{readings: readings, cfg: cfg}
}

// Build returns the N-length contiguous window of valid readings ending at
// target-1h, or (nil, nil) when the history cannot supply one. The nil
// window is an expected outcome, distinct from a store failure, which is
// reported as a non-nil StoreUnavailable error.
func (b *Builder) Build(ctx context.Context, stationID string, target time.Time) (*model.ContextWindow, error) {
	n := b.cfg.ContextWindowSize
	target = target.UTC().Truncate(time.Hour)
	end := target.Add(-time.Hour)
	start := target.Add(-time.Duration(n) * time.Hour)

	rows, err := b.readings.GetReadings(ctx, stationID, start, end)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName, "failed to read context range", err)
	}

	return assemble(stationID, target, start, end, n, rows), nil
}

// assemble validates count and contiguity and produces the window, or nil on
// any violation. Rows are assumed ordered by timestamp ascending.
func assemble(stationID string, target, start, end time.Time, n int, rows []model.Reading) *model.ContextWindow {
	values := make([]float64, 0, n)
	var prev time.Time
	for i := range rows {
		r := &rows[i]
		if r.Missing() {
			return nil
		}
		ts := r.Timestamp.UTC().Truncate(time.Hour)
		if len(values) > 0 && ts.Sub(prev) != time.Hour {
			// More than one hour of wall clock between consecutive elements.
			return nil
		}
		prev = ts
		values = append(values, *r.Value)
	}
	if len(values) != n {
		return nil
	}
	// A full, internally contiguous set must also anchor at the range bounds.
	if !rows[0].Timestamp.UTC().Truncate(time.Hour).Equal(start) || !prev.Equal(end) {
		return nil
	}

	return &model.ContextWindow{
		StationID: stationID,
		Target:    target,
		Start:     start,
		End:       end,
		Values:    values,
	}
}
