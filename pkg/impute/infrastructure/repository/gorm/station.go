package gorm

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/repository"
)

type stationRepository struct {
	db *gorm.DB
}

// NewStationRepository creates a GORM-backed StationRepository.
func NewStationRepository(db *gorm.DB) repository.StationRepository {
	return &stationRepository{db: db}
}

func (r *stationRepository) Exists(ctx context.Context, stationID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Station{}).
		Where("id = ?", stationID).
		Count(&count).Error
	if err != nil {
		return false, storeErr("station existence check", err)
	}
	return count > 0, nil
}

func (r *stationRepository) List(ctx context.Context) ([]model.Station, error) {
	var rows []model.Station
	err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, storeErr("station list", err)
	}
	return rows, nil
}

func (r *stationRepository) Register(ctx context.Context, station *model.Station) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "lat", "lon"}),
		}).
		Create(station).Error
	if err != nil {
		return storeErr("station register", err)
	}
	return nil
}
