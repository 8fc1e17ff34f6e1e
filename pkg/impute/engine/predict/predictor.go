// Package predict implements the imputer: it resolves the newest usable
// model for a station, runs the context window through it, clamps the result
// to the physical range, and writes the value with full audit provenance.
package predict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/gapfill/pkg/impute/adapter/storage"
	"github.com/tigerroll/gapfill/pkg/impute/core/config"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/repository"
	"github.com/tigerroll/gapfill/pkg/impute/core/metrics"
	"github.com/tigerroll/gapfill/pkg/impute/engine/window"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/logger"
)

const moduleName = "predict"

// methodModel is recorded as the imputation method in the audit log.
const methodModel = "recurrent_model"

// Predictor fills single missing hours with model predictions. All writes
// are deterministic for a fixed model version and context window, so
// re-imputing the same slot reproduces the same value.
type Predictor struct {
	readings  repository.ReadingRepository
	artifacts repository.ArtifactRepository
	audits    repository.AuditRepository
	windows   *window.Builder
	cache     *ModelCache
	cfg       *config.EngineConfig
	recorder  metrics.MetricRecorder
}

// NewPredictor creates a new Predictor.
func NewPredictor(
	readings repository.ReadingRepository,
	artifacts repository.ArtifactRepository,
	audits repository.AuditRepository,
	windows *window.Builder,
	cache *ModelCache,
	cfg *config.EngineConfig,
	recorder metrics.MetricRecorder,
) *Predictor {
	return &Predictor{
		readings:  readings,
		artifacts: artifacts,
		audits:    audits,
		windows:   windows,
		cache:     cache,
		cfg:       cfg,
		recorder:  recorder,
	}
}

// Impute fills the missing reading at target for the station. The newest
// non-rejected model version is used; a slot holding an observed value is
// never overwritten. Re-imputing an already imputed slot supersedes the
// prior audit row and writes a fresh one.
func (p *Predictor) Impute(ctx context.Context, stationID string, target time.Time) (*model.ImputedValue, error) {
	target = target.Truncate(time.Hour).UTC()

	existing, err := p.readings.GetReading(ctx, stationID, target)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to read slot %s for station '%s'", target.Format(time.RFC3339), stationID), err)
	}
	if existing != nil && existing.Value != nil && !existing.IsImputed {
		return nil, exception.NewEngineErrorf(exception.KindInternal, moduleName,
			"slot %s of station '%s' holds an observed value, refusing to overwrite",
			target.Format(time.RFC3339), stationID)
	}

	artifact, err := p.artifacts.LatestUsable(ctx, stationID)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to resolve model for station '%s'", stationID), err)
	}
	if artifact == nil {
		p.recorder.RecordImputationSkipped(ctx, stationID, "model_unavailable")
		return nil, exception.NewEngineErrorf(exception.KindModelUnavailable, moduleName,
			"no usable model exists for station '%s'", stationID)
	}

	win, err := p.windows.Build(ctx, stationID, target)
	if err != nil {
		return nil, err
	}
	if win == nil {
		p.recorder.RecordImputationSkipped(ctx, stationID, "no_context")
		return nil, exception.NewEngineErrorf(exception.KindNoContext, moduleName,
			"station '%s' has no full context window before %s", stationID, target.Format(time.RFC3339))
	}

	saved, err := p.cache.Load(ctx, artifact.ObjectName, stationID, artifact.Version)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, exception.NewEngineError(exception.KindModelUnavailable, moduleName,
			fmt.Sprintf("model blob '%s' is missing for station '%s'", artifact.ObjectName, stationID), err)
	}
	if err != nil {
		return nil, err
	}
	if saved.WindowSize != win.Size() {
		return nil, exception.NewEngineErrorf(exception.KindModelUnavailable, moduleName,
			"model version %d of station '%s' expects a window of %d, got %d",
			artifact.Version, stationID, saved.WindowSize, win.Size())
	}

	raw := saved.Scaler.Inverse(saved.Network.Predict(saved.Scaler.TransformSlice(win.Values)))
	value, clamped := p.clamp(raw)
	if clamped {
		logger.Debugf("Clamped prediction %.4f to %.4f for station '%s' at %s",
			raw, value, stationID, target.Format(time.RFC3339))
	}

	version := artifact.Version
	if err := p.readings.UpsertReading(ctx, &model.Reading{
		StationID:    stationID,
		Timestamp:    target,
		Value:        &value,
		IsImputed:    true,
		ModelVersion: &version,
	}); err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to write imputed value for station '%s'", stationID), err)
	}

	if err := p.appendAudit(ctx, stationID, target, value, clamped, win, artifact); err != nil {
		return nil, err
	}
	p.recorder.RecordImputation(ctx, stationID, clamped)

	return &model.ImputedValue{
		StationID:    stationID,
		Timestamp:    target,
		Value:        value,
		ModelVersion: artifact.Version,
		Clamped:      clamped,
		ErrorBound:   artifact.TrainRMSE,
	}, nil
}

// Rollback withdraws the imputed value at target: the reading reverts to
// missing and the active audit row is superseded, not deleted. Rolling back
// a slot that holds no active imputation is an error; observed values are
// never touched.
func (p *Predictor) Rollback(ctx context.Context, stationID string, target time.Time) error {
	target = target.Truncate(time.Hour).UTC()

	active, err := p.audits.ActiveImputation(ctx, stationID, target)
	if err != nil {
		return exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to look up imputation log for station '%s'", stationID), err)
	}
	if active == nil {
		return exception.NewEngineErrorf(exception.KindInternal, moduleName,
			"no active imputation exists for station '%s' at %s", stationID, target.Format(time.RFC3339))
	}

	existing, err := p.readings.GetReading(ctx, stationID, target)
	if err != nil {
		return exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to read slot %s for station '%s'", target.Format(time.RFC3339), stationID), err)
	}
	if existing != nil && existing.Value != nil && !existing.IsImputed {
		return exception.NewEngineErrorf(exception.KindInternal, moduleName,
			"slot %s of station '%s' holds an observed value, refusing rollback",
			target.Format(time.RFC3339), stationID)
	}

	if err := p.readings.UpsertReading(ctx, &model.Reading{
		StationID: stationID,
		Timestamp: target,
	}); err != nil {
		return exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to clear imputed value for station '%s'", stationID), err)
	}
	if err := p.audits.SupersedeImputation(ctx, stationID, target); err != nil {
		return exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to supersede imputation log for station '%s'", stationID), err)
	}

	logger.Infof("Rolled back imputation for station '%s' at %s", stationID, target.Format(time.RFC3339))
	return nil
}

// InvalidateCache drops the station's cached models. The trainer calls this
// after persisting a new version.
func (p *Predictor) InvalidateCache(stationID string) {
	p.cache.Invalidate(stationID)
}

func (p *Predictor) clamp(raw float64) (float64, bool) {
	if raw < p.cfg.ValueFloor {
		return p.cfg.ValueFloor, true
	}
	if raw > p.cfg.ValueCeiling {
		return p.cfg.ValueCeiling, true
	}
	return raw, false
}

// appendAudit supersedes a prior active row if present and appends the new one.
func (p *Predictor) appendAudit(ctx context.Context, stationID string, target time.Time,
	value float64, clamped bool, win *model.ContextWindow, artifact *model.ModelArtifact) error {
	active, err := p.audits.ActiveImputation(ctx, stationID, target)
	if err != nil {
		return exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to look up prior imputation for station '%s'", stationID), err)
	}
	if active != nil {
		if err := p.audits.SupersedeImputation(ctx, stationID, target); err != nil {
			return exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
				fmt.Sprintf("failed to supersede prior imputation for station '%s'", stationID), err)
		}
	}

	bound := artifact.TrainRMSE
	entry := &model.ImputationLog{
		ID:           uuid.NewString(),
		StationID:    stationID,
		Timestamp:    target,
		Parameter:    model.Parameter,
		Value:        value,
		Method:       methodModel,
		WindowStart:  win.Start,
		WindowEnd:    win.End,
		ModelVersion: artifact.Version,
		ErrorBound:   &bound,
		Clamped:      clamped,
		ModelStatus:  string(artifact.Status),
	}
	if err := p.audits.AppendImputationLog(ctx, entry); err != nil {
		return exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to append imputation log for station '%s'", stationID), err)
	}
	return nil
}
