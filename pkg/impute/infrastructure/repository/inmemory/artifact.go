package inmemory

import (
	"context"
	"fmt"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
)

// Save persists a new artifact row. Saving an existing (station, version)
// is an error.
func (r *Repository) Save(ctx context.Context, artifact *model.ModelArtifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byVersion, ok := r.artifacts[artifact.StationID]
	if !ok {
		byVersion = make(map[int]model.ModelArtifact)
		r.artifacts[artifact.StationID] = byVersion
	}
	if _, exists := byVersion[artifact.Version]; exists {
		return fmt.Errorf("artifact (%s, v%d) already exists", artifact.StationID, artifact.Version)
	}
	byVersion[artifact.Version] = *artifact
	return nil
}

// Find returns the artifact for (station, version), or (nil, nil).
func (r *Repository) Find(ctx context.Context, stationID string, version int) (*model.ModelArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	artifact, ok := r.artifacts[stationID][version]
	if !ok {
		return nil, nil
	}
	cloned := artifact
	return &cloned, nil
}

// Latest returns the highest-version artifact, or (nil, nil).
func (r *Repository) Latest(ctx context.Context, stationID string) (*model.ModelArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.latestLocked(stationID, false), nil
}

// LatestUsable returns the highest-version non-rejected artifact, or (nil, nil).
func (r *Repository) LatestUsable(ctx context.Context, stationID string) (*model.ModelArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.latestLocked(stationID, true), nil
}

// latestLocked scans for the highest version; with usableOnly set, rejected
// artifacts are skipped. Caller holds at least a read lock.
func (r *Repository) latestLocked(stationID string, usableOnly bool) *model.ModelArtifact {
	var best *model.ModelArtifact
	for version, artifact := range r.artifacts[stationID] {
		if usableOnly && artifact.Status == model.ArtifactRejected {
			continue
		}
		if best == nil || version > best.Version {
			cloned := artifact
			best = &cloned
		}
	}
	return best
}

// UpdateStatus transitions the status of one artifact version.
func (r *Repository) UpdateStatus(ctx context.Context, stationID string, version int, status model.ArtifactStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	artifact, ok := r.artifacts[stationID][version]
	if !ok {
		return fmt.Errorf("artifact (%s, v%d) not found", stationID, version)
	}
	artifact.Status = status
	r.artifacts[stationID][version] = artifact
	return nil
}

// NextVersion returns the version the next trained model should carry.
func (r *Repository) NextVersion(ctx context.Context, stationID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	max := 0
	for version := range r.artifacts[stationID] {
		if version > max {
			max = version
		}
	}
	return max + 1, nil
}
