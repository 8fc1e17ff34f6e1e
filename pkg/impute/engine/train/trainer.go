// Package train implements model training for the gapfill engine: segmenting
// a station's history into contiguous runs, deriving sliding input windows,
// fitting the recurrent regressor, and persisting the resulting artifact.
package train

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/gapfill/pkg/impute/adapter/storage"
	"github.com/tigerroll/gapfill/pkg/impute/core/config"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/repository"
	"github.com/tigerroll/gapfill/pkg/impute/core/metrics"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/logger"
)

const moduleName = "train"

// Trainer fits a fresh model version for one station from its observed,
// non-imputed history. Imputed values never enter the training set so a
// model is never trained on its own output.
type Trainer struct {
	readings  repository.ReadingRepository
	stations  repository.StationRepository
	artifacts repository.ArtifactRepository
	audits    repository.AuditRepository
	store     storage.ObjectStore
	cfg       *config.EngineConfig
	recorder  metrics.MetricRecorder
}

// NewTrainer creates a new Trainer.
func NewTrainer(
	readings repository.ReadingRepository,
	stations repository.StationRepository,
	artifacts repository.ArtifactRepository,
	audits repository.AuditRepository,
	store storage.ObjectStore,
	cfg *config.EngineConfig,
	recorder metrics.MetricRecorder,
) *Trainer {
	return &Trainer{
		readings:  readings,
		stations:  stations,
		artifacts: artifacts,
		audits:    audits,
		store:     store,
		cfg:       cfg,
		recorder:  recorder,
	}
}

// sample is one supervised training pair: a window of N consecutive values
// and the value of the following hour.
type sample struct {
	window []float64
	target float64
}

// Train fits a new model version for the station from its readings in
// [start, end]. On success the weight blob is written first and the metadata
// row second, so a metadata row never references a missing blob. A training
// failure keeps the previous version untouched.
func (t *Trainer) Train(ctx context.Context, stationID string, start, end time.Time) (*model.TrainingResult, error) {
	startedAt := time.Now()

	exists, err := t.stations.Exists(ctx, stationID)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to look up station '%s'", stationID), err)
	}
	if !exists {
		return nil, exception.NewEngineError(exception.KindInternal, moduleName,
			fmt.Sprintf("station '%s' is not registered", stationID), repository.ErrStationNotFound)
	}

	readings, err := t.readings.GetReadings(ctx, stationID, start, end)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to load training history for station '%s'", stationID), err)
	}

	runs, total := segmentRuns(readings)
	if total < t.cfg.MinTrainingHours {
		t.recorder.RecordTraining(ctx, stationID, "insufficient_history", time.Since(startedAt))
		return nil, exception.NewEngineErrorf(exception.KindInsufficientHistory, moduleName,
			"station '%s' has %d usable hours, %d required", stationID, total, t.cfg.MinTrainingHours)
	}

	samples := slidingWindows(runs, t.cfg.ContextWindowSize)
	if len(samples) < 2 {
		t.recorder.RecordTraining(ctx, stationID, "insufficient_history", time.Since(startedAt))
		return nil, exception.NewEngineErrorf(exception.KindInsufficientHistory, moduleName,
			"station '%s' history yields only %d training windows", stationID, len(samples))
	}

	// Chronological split: the most recent windows form the validation set.
	// The samples come out of slidingWindows ordered by target time.
	cut := int(float64(len(samples)) * t.cfg.TrainSplit)
	if cut < 1 {
		cut = 1
	}
	if cut >= len(samples) {
		cut = len(samples) - 1
	}
	trainSet, valSet := samples[:cut], samples[cut:]

	// The scaler is fitted on training values only; the validation set must
	// not leak into the value range.
	scaler := fitFromSamples(trainSet)
	trainX, trainY := scaled(trainSet, scaler)
	valX, valY := scaled(valSet, scaler)

	version, err := t.artifacts.NextVersion(ctx, stationID)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to allocate model version for station '%s'", stationID), err)
	}

	seed := t.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	network := NewNetwork(t.cfg.HiddenUnits, t.cfg.Dropout, seed)

	logger.Infof("Training model version %d for station '%s' (%d train / %d val windows)",
		version, stationID, len(trainSet), len(valSet))

	report, err := network.Fit(trainX, trainY, valX, valY, FitConfig{
		LearningRate: t.cfg.LearningRate,
		MaxEpochs:    t.cfg.MaxEpochs,
		Patience:     t.cfg.Patience,
	})
	if err != nil {
		t.appendTrainingLog(ctx, stationID, version, len(trainSet), len(valSet),
			model.Metrics{}, startedAt, "failed", err.Error())
		t.recorder.RecordTraining(ctx, stationID, "failed", time.Since(startedAt))
		return nil, err
	}

	// Out-of-sample metrics in original units.
	predicted := make([]float64, len(valX))
	observed := make([]float64, len(valY))
	for i := range valX {
		predicted[i] = scaler.Inverse(network.Predict(valX[i]))
		observed[i] = scaler.Inverse(valY[i])
	}
	m := Evaluate(observed, predicted)

	saved := &SavedModel{
		StationID:  stationID,
		Version:    version,
		WindowSize: t.cfg.ContextWindowSize,
		Scaler:     scaler,
		Network:    network,
	}
	blob, err := saved.Encode()
	if err != nil {
		return nil, err
	}
	objectName := ObjectName(stationID, version)
	if err := t.store.Put(ctx, objectName, blob); err != nil {
		t.appendTrainingLog(ctx, stationID, version, len(trainSet), len(valSet),
			m, startedAt, "failed", err.Error())
		t.recorder.RecordTraining(ctx, stationID, "failed", time.Since(startedAt))
		return nil, err
	}
	artifact := &model.ModelArtifact{
		StationID:  stationID,
		Version:    version,
		Status:     model.ArtifactPending,
		ObjectName: objectName,
		WindowSize: t.cfg.ContextWindowSize,
		TrainedAt:  time.Now().UTC(),
		TrainRMSE:  m.RMSE,
		TrainMAE:   m.MAE,
		TrainR2:    m.R2,
	}
	if err := t.artifacts.Save(ctx, artifact); err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			fmt.Sprintf("failed to save artifact metadata for station '%s' version %d", stationID, version), err)
	}

	duration := time.Since(startedAt)
	t.appendTrainingLog(ctx, stationID, version, len(trainSet), len(valSet),
		m, startedAt, "trained", fmt.Sprintf("best validation loss %.6f after %d epochs", report.BestValLoss, report.Epochs))
	t.recorder.RecordTraining(ctx, stationID, "trained", duration)

	logger.Infof("Trained model version %d for station '%s' (RMSE: %.4f, R2: %.4f)",
		version, stationID, m.RMSE, m.R2)

	return &model.TrainingResult{
		StationID:    stationID,
		ModelVersion: version,
		TrainSamples: len(trainSet),
		ValSamples:   len(valSet),
		RMSE:         m.RMSE,
		MAE:          m.MAE,
		R2:           m.R2,
		Duration:     duration,
	}, nil
}

// appendTrainingLog best-effort appends the audit row; audit failures are
// logged but never override the training outcome.
func (t *Trainer) appendTrainingLog(ctx context.Context, stationID string, version, trainN, valN int,
	m model.Metrics, startedAt time.Time, outcome, message string) {
	entry := &model.TrainingLog{
		ID:           uuid.NewString(),
		StationID:    stationID,
		ModelVersion: version,
		TrainSamples: trainN,
		ValSamples:   valN,
		RMSE:         m.RMSE,
		MAE:          m.MAE,
		R2:           m.R2,
		DurationMS:   time.Since(startedAt).Milliseconds(),
		Outcome:      outcome,
		Message:      message,
	}
	if err := t.audits.AppendTrainingLog(ctx, entry); err != nil {
		logger.Errorf("Failed to append training log for station '%s': %v", stationID, err)
	}
}

// segmentRuns splits the readings into maximal contiguous runs of observed,
// non-imputed values. A run breaks at any missing hour, null value, imputed
// value, or a timestamp step other than exactly one hour. It returns the
// runs and the total number of usable hours across them.
func segmentRuns(readings []model.Reading) ([][]float64, int) {
	var runs [][]float64
	var current []float64
	var prev time.Time
	total := 0

	flush := func() {
		if len(current) > 0 {
			runs = append(runs, current)
			current = nil
		}
	}

	for i := range readings {
		r := &readings[i]
		if r.Value == nil || r.IsImputed {
			flush()
			continue
		}
		if len(current) > 0 && r.Timestamp.Sub(prev) != time.Hour {
			flush()
		}
		current = append(current, *r.Value)
		prev = r.Timestamp
		total++
	}
	flush()
	return runs, total
}

// slidingWindows derives supervised pairs from the runs: every N consecutive
// values predict the next one. Runs shorter than N+1 yield nothing.
func slidingWindows(runs [][]float64, n int) []sample {
	var samples []sample
	for _, run := range runs {
		for i := 0; i+n < len(run); i++ {
			samples = append(samples, sample{window: run[i : i+n], target: run[i+n]})
		}
	}
	return samples
}

// fitFromSamples fits the scaler over all values appearing in the given samples.
func fitFromSamples(samples []sample) *MinMaxScaler {
	var values []float64
	for _, s := range samples {
		values = append(values, s.window...)
		values = append(values, s.target)
	}
	return FitScaler(values)
}

// scaled transforms the samples into scaled input and target slices.
func scaled(samples []sample, scaler *MinMaxScaler) ([][]float64, []float64) {
	xs := make([][]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = scaler.TransformSlice(s.window)
		ys[i] = scaler.Transform(s.target)
	}
	return xs, ys
}
