// Package repository defines the persistence ports of the gapfill engine.
// Implementations live under infrastructure/repository (GORM-backed and
// in-memory). All reads of absent rows return (nil, nil); errors are
// reserved for store failures.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
)

// ErrStationNotFound is returned by operations that require a registered station.
var ErrStationNotFound = errors.New("station not found")

// ReadingRepository is the store accessor for the per-station hourly series.
// Both primitives are assumed durable and immediately consistent for the
// same station's subsequent reads.
type ReadingRepository interface {
	// GetReadings returns all persisted readings for the station in
	// [start, end], ordered by timestamp ascending. Missing hours simply
	// have no row.
	GetReadings(ctx context.Context, stationID string, start, end time.Time) ([]model.Reading, error)

	// GetReading returns the reading at exactly ts, or (nil, nil) if no row exists.
	GetReading(ctx context.Context, stationID string, ts time.Time) (*model.Reading, error)

	// UpsertReading inserts or replaces the row keyed by (station, timestamp).
	// The write is per-row atomic.
	UpsertReading(ctx context.Context, reading *model.Reading) error
}

// StationRepository provides access to the station registry.
type StationRepository interface {
	// Exists reports whether the station is registered.
	Exists(ctx context.Context, stationID string) (bool, error)

	// List returns all registered stations.
	List(ctx context.Context) ([]model.Station, error)

	// Register adds or updates a station.
	Register(ctx context.Context, station *model.Station) error
}

// ArtifactRepository stores model artifact metadata keyed by (station, version).
// Rows are immutable apart from the Status column, which only the validator
// transitions.
type ArtifactRepository interface {
	// Save persists a new artifact row. Saving an existing (station, version)
	// is an error; retraining must allocate a new version first.
	Save(ctx context.Context, artifact *model.ModelArtifact) error

	// Find returns the artifact for (station, version), or (nil, nil).
	Find(ctx context.Context, stationID string, version int) (*model.ModelArtifact, error)

	// Latest returns the highest-version artifact for the station, or (nil, nil).
	Latest(ctx context.Context, stationID string) (*model.ModelArtifact, error)

	// LatestUsable returns the highest-version artifact whose status is not
	// rejected, or (nil, nil) when every version is rejected or none exists.
	LatestUsable(ctx context.Context, stationID string) (*model.ModelArtifact, error)

	// UpdateStatus transitions the status of one artifact version.
	UpdateStatus(ctx context.Context, stationID string, version int, status model.ArtifactStatus) error

	// NextVersion returns the version number the next trained model should
	// carry (highest existing version + 1, starting at 1).
	NextVersion(ctx context.Context, stationID string) (int, error)
}

// AuditRepository appends to the three immutable audit tables.
type AuditRepository interface {
	// AppendTrainingLog appends one training audit row.
	AppendTrainingLog(ctx context.Context, entry *model.TrainingLog) error

	// AppendImputationLog appends one imputation audit row.
	AppendImputationLog(ctx context.Context, entry *model.ImputationLog) error

	// AppendValidationLog appends one validation audit row.
	AppendValidationLog(ctx context.Context, entry *model.ValidationLog) error

	// ActiveImputation returns the non-superseded imputation log entry for
	// (station, timestamp), or (nil, nil) when none exists.
	ActiveImputation(ctx context.Context, stationID string, ts time.Time) (*model.ImputationLog, error)

	// SupersedeImputation marks the active imputation log entry for
	// (station, timestamp) as superseded. The row itself is retained.
	SupersedeImputation(ctx context.Context, stationID string, ts time.Time) error

	// ListImputations returns all imputation log rows (including superseded
	// ones) for the station created at or after since, ordered by creation.
	ListImputations(ctx context.Context, stationID string, since time.Time) ([]model.ImputationLog, error)
}
