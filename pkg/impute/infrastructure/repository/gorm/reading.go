// Package gorm implements the persistence ports on a GORM database
// connection. All absent-row reads return (nil, nil); every database error
// is wrapped as a retryable store failure.
package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/repository"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
)

const moduleName = "repository"

func storeErr(op string, err error) error {
	return exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
		fmt.Sprintf("%s failed", op), err)
}

type readingRepository struct {
	db *gorm.DB
}

// NewReadingRepository creates a GORM-backed ReadingRepository.
func NewReadingRepository(db *gorm.DB) repository.ReadingRepository {
	return &readingRepository{db: db}
}

func (r *readingRepository) GetReadings(ctx context.Context, stationID string, start, end time.Time) ([]model.Reading, error) {
	var rows []model.Reading
	err := r.db.WithContext(ctx).
		Where("station_id = ? AND ts >= ? AND ts <= ?", stationID, start.UTC(), end.UTC()).
		Order("ts ASC").
		Find(&rows).Error
	if err != nil {
		return nil, storeErr("reading range query", err)
	}
	return rows, nil
}

func (r *readingRepository) GetReading(ctx context.Context, stationID string, ts time.Time) (*model.Reading, error) {
	var row model.Reading
	err := r.db.WithContext(ctx).
		Where("station_id = ? AND ts = ?", stationID, ts.UTC()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("reading lookup", err)
	}
	return &row, nil
}

func (r *readingRepository) UpsertReading(ctx context.Context, reading *model.Reading) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "station_id"}, {Name: "ts"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "is_imputed", "model_version", "updated_at"}),
		}).
		Create(reading).Error
	if err != nil {
		return storeErr("reading upsert", err)
	}
	return nil
}
