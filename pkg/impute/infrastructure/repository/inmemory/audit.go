package inmemory

import (
	"context"
	"time"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
)

// AppendTrainingLog appends one training audit row.
func (r *Repository) AppendTrainingLog(ctx context.Context, entry *model.TrainingLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cloned := *entry
	if cloned.CreatedAt.IsZero() {
		cloned.CreatedAt = time.Now().UTC()
	}
	r.trainingLogs = append(r.trainingLogs, cloned)
	return nil
}

// AppendImputationLog appends one imputation audit row.
func (r *Repository) AppendImputationLog(ctx context.Context, entry *model.ImputationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cloned := cloneImputationLog(*entry)
	if cloned.CreatedAt.IsZero() {
		cloned.CreatedAt = time.Now().UTC()
	}
	r.imputationLogs = append(r.imputationLogs, cloned)
	return nil
}

// AppendValidationLog appends one validation audit row.
func (r *Repository) AppendValidationLog(ctx context.Context, entry *model.ValidationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cloned := *entry
	if cloned.CreatedAt.IsZero() {
		cloned.CreatedAt = time.Now().UTC()
	}
	r.validationLogs = append(r.validationLogs, cloned)
	return nil
}

// ActiveImputation returns the non-superseded imputation entry for
// (station, timestamp), or (nil, nil).
func (r *Repository) ActiveImputation(ctx context.Context, stationID string, ts time.Time) (*model.ImputationLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot := ts.UTC().Truncate(time.Hour)
	for i := len(r.imputationLogs) - 1; i >= 0; i-- {
		entry := r.imputationLogs[i]
		if entry.StationID == stationID && entry.Timestamp.UTC().Truncate(time.Hour).Equal(slot) && entry.SupersededAt == nil {
			cloned := cloneImputationLog(entry)
			return &cloned, nil
		}
	}
	return nil, nil
}

// SupersedeImputation marks every active imputation entry for
// (station, timestamp) as superseded.
func (r *Repository) SupersedeImputation(ctx context.Context, stationID string, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := ts.UTC().Truncate(time.Hour)
	now := time.Now().UTC()
	for i := range r.imputationLogs {
		entry := &r.imputationLogs[i]
		if entry.StationID == stationID && entry.Timestamp.UTC().Truncate(time.Hour).Equal(slot) && entry.SupersededAt == nil {
			supersededAt := now
			entry.SupersededAt = &supersededAt
		}
	}
	return nil
}

// ListImputations returns all imputation rows for the station created at or
// after since, in append order.
func (r *Repository) ListImputations(ctx context.Context, stationID string, since time.Time) ([]model.ImputationLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.ImputationLog, 0)
	for _, entry := range r.imputationLogs {
		if entry.StationID == stationID && !entry.CreatedAt.Before(since) {
			out = append(out, cloneImputationLog(entry))
		}
	}
	return out, nil
}

// TrainingLogs returns a copy of all training log rows. Test helper.
func (r *Repository) TrainingLogs() []model.TrainingLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.TrainingLog, len(r.trainingLogs))
	copy(out, r.trainingLogs)
	return out
}

// ValidationLogs returns a copy of all validation log rows. Test helper.
func (r *Repository) ValidationLogs() []model.ValidationLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.ValidationLog, len(r.validationLogs))
	copy(out, r.validationLogs)
	return out
}

// cloneImputationLog deep-copies an imputation row, including pointer fields.
func cloneImputationLog(in model.ImputationLog) model.ImputationLog {
	out := in
	if in.ErrorBound != nil {
		b := *in.ErrorBound
		out.ErrorBound = &b
	}
	if in.SupersededAt != nil {
		s := *in.SupersededAt
		out.SupersededAt = &s
	}
	return out
}
