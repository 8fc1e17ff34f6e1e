package inmemory

import (
	"context"
	"sort"
	"time"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
)

// GetReadings returns all rows for the station within [start, end],
// ordered by timestamp ascending.
func (r *Repository) GetReadings(ctx context.Context, stationID string, start, end time.Time) ([]model.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Reading, 0)
	for key, reading := range r.readings {
		if key.stationID != stationID {
			continue
		}
		if reading.Timestamp.Before(start) || reading.Timestamp.After(end) {
			continue
		}
		out = append(out, cloneReading(reading))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// GetReading returns the row at exactly ts, or (nil, nil) when absent.
func (r *Repository) GetReading(ctx context.Context, stationID string, ts time.Time) (*model.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reading, ok := r.readings[keyFor(stationID, ts)]
	if !ok {
		return nil, nil
	}
	cloned := cloneReading(reading)
	return &cloned, nil
}

// UpsertReading inserts or replaces the row keyed by (station, timestamp).
func (r *Repository) UpsertReading(ctx context.Context, reading *model.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cloned := cloneReading(*reading)
	if cloned.CreatedAt.IsZero() {
		cloned.CreatedAt = time.Now().UTC()
	}
	cloned.UpdatedAt = time.Now().UTC()
	r.readings[keyFor(reading.StationID, reading.Timestamp)] = cloned
	return nil
}

// cloneReading deep-copies a reading, including its pointer fields.
func cloneReading(in model.Reading) model.Reading {
	out := in
	if in.Value != nil {
		v := *in.Value
		out.Value = &v
	}
	if in.ModelVersion != nil {
		mv := *in.ModelVersion
		out.ModelVersion = &mv
	}
	return out
}
