package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/repository"
)

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a GORM-backed AuditRepository.
func NewAuditRepository(db *gorm.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) AppendTrainingLog(ctx context.Context, entry *model.TrainingLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return storeErr("training log append", err)
	}
	return nil
}

func (r *auditRepository) AppendImputationLog(ctx context.Context, entry *model.ImputationLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return storeErr("imputation log append", err)
	}
	return nil
}

func (r *auditRepository) AppendValidationLog(ctx context.Context, entry *model.ValidationLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return storeErr("validation log append", err)
	}
	return nil
}

func (r *auditRepository) ActiveImputation(ctx context.Context, stationID string, ts time.Time) (*model.ImputationLog, error) {
	var row model.ImputationLog
	err := r.db.WithContext(ctx).
		Where("station_id = ? AND ts = ? AND superseded_at IS NULL", stationID, ts.UTC()).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("active imputation lookup", err)
	}
	return &row, nil
}

func (r *auditRepository) SupersedeImputation(ctx context.Context, stationID string, ts time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.ImputationLog{}).
		Where("station_id = ? AND ts = ? AND superseded_at IS NULL", stationID, ts.UTC()).
		Update("superseded_at", time.Now().UTC()).Error
	if err != nil {
		return storeErr("imputation supersede", err)
	}
	return nil
}

func (r *auditRepository) ListImputations(ctx context.Context, stationID string, since time.Time) ([]model.ImputationLog, error) {
	var rows []model.ImputationLog
	err := r.db.WithContext(ctx).
		Where("station_id = ? AND created_at >= ?", stationID, since.UTC()).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, storeErr("imputation list", err)
	}
	return rows, nil
}
