// Package inmemory provides in-memory implementations of the engine's
// repository ports. They are used by tests and by embedded deployments that
// do not need a durable store. All methods are safe for concurrent use and
// hand out deep copies so callers cannot mutate internal state.
package inmemory

import (
	"sync"
	"time"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
)

// readingKey identifies one reading row.
type readingKey struct {
	stationID string
	ts        int64
}

// Repository is a single in-memory store backing all four repository ports.
type Repository struct {
	mu sync.RWMutex

	stations map[string]model.Station
	readings map[readingKey]model.Reading

	// artifacts maps station -> version -> artifact.
	artifacts map[string]map[int]model.ModelArtifact

	trainingLogs   []model.TrainingLog
	imputationLogs []model.ImputationLog
	validationLogs []model.ValidationLog
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		stations:  make(map[string]model.Station),
		readings:  make(map[readingKey]model.Reading),
		artifacts: make(map[string]map[int]model.ModelArtifact),
	}
}

// keyFor normalizes a timestamp to its hourly slot key.
func keyFor(stationID string, ts time.Time) readingKey {
	return readingKey{stationID: stationID, ts: ts.UTC().Truncate(time.Hour).Unix()}
}
