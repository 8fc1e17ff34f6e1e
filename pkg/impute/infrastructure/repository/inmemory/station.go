package inmemory

import (
	"context"
	"sort"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
)

// Exists reports whether the station is registered.
func (r *Repository) Exists(ctx context.Context, stationID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.stations[stationID]
	return ok, nil
}

// List returns all registered stations ordered by ID.
func (r *Repository) List(ctx context.Context) ([]model.Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Station, 0, len(r.stations))
	for _, s := range r.stations {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Register adds or updates a station.
func (r *Repository) Register(ctx context.Context, station *model.Station) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stations[station.ID] = *station
	return nil
}
