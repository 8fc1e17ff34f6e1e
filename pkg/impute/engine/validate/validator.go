// Package validate implements model certification: the newest model version
// is scored on a held-out sample of observed readings against naive
// baselines, and its artifact status is flipped to certified or rejected.
package validate

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/gapfill/pkg/impute/core/config"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/repository"
	"github.com/tigerroll/gapfill/pkg/impute/core/metrics"
	"github.com/tigerroll/gapfill/pkg/impute/engine/predict"
	"github.com/tigerroll/gapfill/pkg/impute/engine/train"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/logger"
)

const moduleName = "validate"

// Validator certifies or rejects a station's newest model. Certification
// requires the model to beat linear interpolation on RMSE and clear the
// minimum out-of-sample R².
type Validator struct {
	readings  repository.ReadingRepository
	artifacts repository.ArtifactRepository
	audits    repository.AuditRepository
	cache     *predict.ModelCache
	cfg       *config.EngineConfig
	recorder  metrics.MetricRecorder
}

// NewValidator creates a new Validator.
func NewValidator(
	readings repository.ReadingRepository,
	artifacts repository.ArtifactRepository,
	audits repository.AuditRepository,
	cache *predict.ModelCache,
	cfg *config.EngineConfig,
	recorder metrics.MetricRecorder,
) *Validator {
	return &Validator{
		readings:  readings,
		artifacts: artifacts,
		audits:    audits,
		cache:     cache,
		cfg:       cfg,
		recorder:  recorder,
	}
}

// candidate is one observed reading hidden from the model for scoring, with
// the context preceding it and its immediate neighbors for the baselines.
type candidate struct {
	window []float64
	truth  float64
	prev   float64
	next   float64
}

// Validate scores the newest model of the station on a random sample of
// observed, non-imputed readings in [start, end] and transitions the
// artifact status accordingly. The sample is drawn without replacement and
// is deterministic for a fixed seed.
func (v *Validator) Validate(ctx context.Context, stationID string, start, end time.Time) (*model.ValidationResult, error) {
	artifact, err := v.artifacts.Latest(ctx, stationID)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to resolve model for station '%s'", stationID), err)
	}
	if artifact == nil {
		return nil, exception.NewEngineErrorf(exception.KindModelUnavailable, moduleName,
			"no model exists for station '%s'", stationID)
	}

	saved, err := v.cache.Load(ctx, artifact.ObjectName, stationID, artifact.Version)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindModelUnavailable, moduleName,
			fmt.Sprintf("failed to load model version %d for station '%s'", artifact.Version, stationID), err)
	}

	readings, err := v.readings.GetReadings(ctx, stationID, start, end)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to load validation history for station '%s'", stationID), err)
	}

	candidates := collectCandidates(readings, saved.WindowSize)
	if len(candidates) == 0 {
		return nil, exception.NewEngineErrorf(exception.KindInsufficientHistory, moduleName,
			"station '%s' has no observed readings with full context in the validation range", stationID)
	}
	sampled := sampleCandidates(candidates, v.cfg.ValidationSampleFraction, v.cfg.Seed)

	observed := make([]float64, len(sampled))
	modelPred := make([]float64, len(sampled))
	linearPred := make([]float64, len(sampled))
	ffillPred := make([]float64, len(sampled))
	for i, c := range sampled {
		raw := saved.Scaler.Inverse(saved.Network.Predict(saved.Scaler.TransformSlice(c.window)))
		if raw < v.cfg.ValueFloor {
			raw = v.cfg.ValueFloor
		} else if raw > v.cfg.ValueCeiling {
			raw = v.cfg.ValueCeiling
		}
		observed[i] = c.truth
		modelPred[i] = raw
		linearPred[i] = (c.prev + c.next) / 2
		ffillPred[i] = c.prev
	}

	modelM := train.Evaluate(observed, modelPred)
	linearM := train.Evaluate(observed, linearPred)
	ffillM := train.Evaluate(observed, ffillPred)

	certified := modelM.RMSE < linearM.RMSE && modelM.R2 > v.cfg.MinR2
	status := model.ArtifactRejected
	if certified {
		status = model.ArtifactCertified
	}
	if err := v.artifacts.UpdateStatus(ctx, stationID, artifact.Version, status); err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to update status of model version %d for station '%s'", artifact.Version, stationID), err)
	}

	entry := &model.ValidationLog{
		ID:           uuid.NewString(),
		StationID:    stationID,
		ModelVersion: artifact.Version,
		SampleSize:   len(sampled),
		ModelRMSE:    modelM.RMSE,
		ModelMAE:     modelM.MAE,
		ModelR2:      modelM.R2,
		LinearRMSE:   linearM.RMSE,
		LinearMAE:    linearM.MAE,
		LinearR2:     linearM.R2,
		FFillRMSE:    ffillM.RMSE,
		FFillMAE:     ffillM.MAE,
		FFillR2:      ffillM.R2,
		Certified:    certified,
	}
	if err := v.audits.AppendValidationLog(ctx, entry); err != nil {
		logger.Errorf("Failed to append validation log for station '%s': %v", stationID, err)
	}
	v.recorder.RecordValidation(ctx, stationID, certified)

	verdict := "rejected"
	if certified {
		verdict = "certified"
	}
	logger.Infof("Model version %d for station '%s' %s (model RMSE: %.4f, linear RMSE: %.4f, R2: %.4f)",
		artifact.Version, stationID, verdict, modelM.RMSE, linearM.RMSE, modelM.R2)

	return &model.ValidationResult{
		StationID:    stationID,
		ModelVersion: artifact.Version,
		SampleSize:   len(sampled),
		Model:        modelM,
		Linear:       linearM,
		FFill:        ffillM,
		Certified:    certified,
	}, nil
}

// collectCandidates walks the contiguous runs of observed, non-imputed
// readings and emits every position with a full context window before it and
// a neighbor after it, so both baselines are defined.
func collectCandidates(readings []model.Reading, windowSize int) []candidate {
	var candidates []candidate
	var run []float64
	var prev time.Time

	flush := func() {
		for i := windowSize; i < len(run)-1; i++ {
			candidates = append(candidates, candidate{
				window: run[i-windowSize : i],
				truth:  run[i],
				prev:   run[i-1],
				next:   run[i+1],
			})
		}
		run = nil
	}

	for i := range readings {
		r := &readings[i]
		if r.Value == nil || r.IsImputed {
			flush()
			continue
		}
		if len(run) > 0 && r.Timestamp.Sub(prev) != time.Hour {
			flush()
		}
		run = append(run, *r.Value)
		prev = r.Timestamp
	}
	flush()
	return candidates
}

// sampleCandidates draws a deterministic sample without replacement.
// At least one candidate is always drawn.
func sampleCandidates(candidates []candidate, fraction float64, seed int64) []candidate {
	n := int(fraction * float64(len(candidates)))
	if n < 1 {
		n = 1
	}
	if n >= len(candidates) {
		return candidates
	}
	rng := rand.New(rand.NewSource(seed))
	idx := rng.Perm(len(candidates))[:n]
	out := make([]candidate, n)
	for i, j := range idx {
		out[i] = candidates[j]
	}
	return out
}
