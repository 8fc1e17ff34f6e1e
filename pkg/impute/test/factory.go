// Package test provides shared helpers for the engine test suites: seeded
// in-memory stores, synthetic hourly series, and failing-store stubs.
package test

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/tigerroll/gapfill/pkg/impute/core/config"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/infrastructure/repository/inmemory"
)

// BaseTime is the start of every synthetic series used in tests.
var BaseTime = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// HourAt returns BaseTime + h hours.
func HourAt(h int) time.Time {
	return BaseTime.Add(time.Duration(h) * time.Hour)
}

// NewEngineConfig returns the default engine thresholds used by tests.
func NewEngineConfig() *config.EngineConfig {
	cfg := config.NewConfig()
	engine := cfg.Gapfill.Engine
	// Deterministic training across test runs.
	engine.Seed = 7
	return &engine
}

// NewSeededRepository returns an in-memory repository with the station registered.
func NewSeededRepository(stationID string) *inmemory.Repository {
	repo := inmemory.NewRepository()
	_ = repo.Register(context.Background(), &model.Station{ID: stationID, Name: stationID})
	return repo
}

// SeedHours writes one reading per hour in [fromHour, toHour) using values
// from gen, skipping hours for which skip returns true.
func SeedHours(repo *inmemory.Repository, stationID string, fromHour, toHour int, gen func(h int) float64, skip func(h int) bool) {
	ctx := context.Background()
	for h := fromHour; h < toHour; h++ {
		if skip != nil && skip(h) {
			continue
		}
		v := gen(h)
		_ = repo.UpsertReading(ctx, &model.Reading{
			StationID: stationID,
			Timestamp: HourAt(h),
			Value:     &v,
		})
	}
}

// SineSeries returns a smooth, bounded synthetic generating process: a slow
// daily oscillation around a positive mean.
func SineSeries(mean, amplitude float64) func(h int) float64 {
	return func(h int) float64 {
		return mean + amplitude*math.Sin(2*math.Pi*float64(h)/24.0)
	}
}

// ConstantWithNoise returns a constant process with small uniform noise,
// seeded for reproducibility.
func ConstantWithNoise(value, noise float64, seed int64) func(h int) float64 {
	rng := rand.New(rand.NewSource(seed))
	return func(h int) float64 {
		return value + noise*(2*rng.Float64()-1)
	}
}

// FailingStore implements the reading and station repository ports and fails
// every call with the given error. It stands in for an unreachable store.
type FailingStore struct {
	Err error
}

// GetReadings always fails.
func (f *FailingStore) GetReadings(ctx context.Context, stationID string, start, end time.Time) ([]model.Reading, error) {
	return nil, f.Err
}

// GetReading always fails.
func (f *FailingStore) GetReading(ctx context.Context, stationID string, ts time.Time) (*model.Reading, error) {
	return nil, f.Err
}

// UpsertReading always fails.
func (f *FailingStore) UpsertReading(ctx context.Context, reading *model.Reading) error {
	return f.Err
}

// Exists always fails.
func (f *FailingStore) Exists(ctx context.Context, stationID string) (bool, error) {
	return false, f.Err
}

// List always fails.
func (f *FailingStore) List(ctx context.Context) ([]model.Station, error) {
	return nil, f.Err
}

// Register always fails.
func (f *FailingStore) Register(ctx context.Context, station *model.Station) error {
	return f.Err
}
