package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/repository"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
)

type artifactRepository struct {
	db *gorm.DB
}

// NewArtifactRepository creates a GORM-backed ArtifactRepository.
func NewArtifactRepository(db *gorm.DB) repository.ArtifactRepository {
	return &artifactRepository{db: db}
}

func (r *artifactRepository) Save(ctx context.Context, artifact *model.ModelArtifact) error {
	// No conflict clause: saving an existing (station, version) must fail.
	err := r.db.WithContext(ctx).Create(artifact).Error
	if err != nil {
		return storeErr("artifact save", err)
	}
	return nil
}

func (r *artifactRepository) Find(ctx context.Context, stationID string, version int) (*model.ModelArtifact, error) {
	var row model.ModelArtifact
	err := r.db.WithContext(ctx).
		Where("station_id = ? AND version = ?", stationID, version).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("artifact lookup", err)
	}
	return &row, nil
}

func (r *artifactRepository) Latest(ctx context.Context, stationID string) (*model.ModelArtifact, error) {
	return r.latest(ctx, stationID, false)
}

func (r *artifactRepository) LatestUsable(ctx context.Context, stationID string) (*model.ModelArtifact, error) {
	return r.latest(ctx, stationID, true)
}

func (r *artifactRepository) latest(ctx context.Context, stationID string, usableOnly bool) (*model.ModelArtifact, error) {
	q := r.db.WithContext(ctx).Where("station_id = ?", stationID)
	if usableOnly {
		q = q.Where("status <> ?", model.ArtifactRejected)
	}
	var row model.ModelArtifact
	err := q.Order("version DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("latest artifact lookup", err)
	}
	return &row, nil
}

func (r *artifactRepository) UpdateStatus(ctx context.Context, stationID string, version int, status model.ArtifactStatus) error {
	result := r.db.WithContext(ctx).
		Model(&model.ModelArtifact{}).
		Where("station_id = ? AND version = ?", stationID, version).
		Update("status", status)
	if result.Error != nil {
		return storeErr("artifact status update", result.Error)
	}
	if result.RowsAffected == 0 {
		return exception.NewEngineErrorf(exception.KindInternal, moduleName,
			"no artifact exists for station '%s' version %d", stationID, version)
	}
	return nil
}

func (r *artifactRepository) NextVersion(ctx context.Context, stationID string) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&model.ModelArtifact{}).
		Where("station_id = ?", stationID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, storeErr(fmt.Sprintf("next version for station '%s'", stationID), err)
	}
	return max + 1, nil
}
