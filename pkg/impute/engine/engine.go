// Package engine exposes the gapfill engine facade: gap detection, model
// training, imputation, validation and rollback for one station at a time.
// Concurrency across stations is the caller's business; within one station
// the facade serializes training against predictor reads.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/engine/gap"
	"github.com/tigerroll/gapfill/pkg/impute/engine/predict"
	"github.com/tigerroll/gapfill/pkg/impute/engine/train"
	"github.com/tigerroll/gapfill/pkg/impute/engine/validate"
)

// stationLocks hands out one RWMutex per station. Training takes the write
// side; imputation and rollback take the read side, so predictor reads for
// one station never interleave with its training.
type stationLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newStationLocks() *stationLocks {
	return &stationLocks{locks: make(map[string]*sync.RWMutex)}
}

func (s *stationLocks) get(stationID string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[stationID]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[stationID] = l
	}
	return l
}

// Engine bundles the detector, trainer, predictor and validator behind the
// operations consumed by schedulers and API layers.
type Engine struct {
	detector  *gap.Detector
	trainer   *train.Trainer
	predictor *predict.Predictor
	validator *validate.Validator
	locks     *stationLocks
}

// NewEngine creates a new Engine.
func NewEngine(
	detector *gap.Detector,
	trainer *train.Trainer,
	predictor *predict.Predictor,
	validator *validate.Validator,
) *Engine {
	return &Engine{
		detector:  detector,
		trainer:   trainer,
		predictor: predictor,
		validator: validator,
		locks:     newStationLocks(),
	}
}

// DetectGaps returns the classified gaps of the station in [start, end].
// Detection is side-effect free and takes no station lock.
func (e *Engine) DetectGaps(ctx context.Context, stationID string, start, end time.Time) ([]model.Gap, error) {
	return e.detector.Detect(ctx, stationID, start, end)
}

// Train fits a new model version from the station's readings in [start, end]
// and drops the station's cached models so the next imputation sees it.
func (e *Engine) Train(ctx context.Context, stationID string, start, end time.Time) (*model.TrainingResult, error) {
	l := e.locks.get(stationID)
	l.Lock()
	defer l.Unlock()

	result, err := e.trainer.Train(ctx, stationID, start, end)
	if err != nil {
		return nil, err
	}
	e.predictor.InvalidateCache(stationID)
	return result, nil
}

// Impute fills the missing reading at ts with the station's newest usable model.
func (e *Engine) Impute(ctx context.Context, stationID string, ts time.Time) (*model.ImputedValue, error) {
	l := e.locks.get(stationID)
	l.RLock()
	defer l.RUnlock()

	return e.predictor.Impute(ctx, stationID, ts)
}

// Validate scores the station's newest model on readings in [start, end] and
// certifies or rejects it.
func (e *Engine) Validate(ctx context.Context, stationID string, start, end time.Time) (*model.ValidationResult, error) {
	l := e.locks.get(stationID)
	l.Lock()
	defer l.Unlock()

	return e.validator.Validate(ctx, stationID, start, end)
}

// RollbackImputation withdraws the imputed value at ts, superseding its
// audit row.
func (e *Engine) RollbackImputation(ctx context.Context, stationID string, ts time.Time) error {
	l := e.locks.get(stationID)
	l.RLock()
	defer l.RUnlock()

	return e.predictor.Rollback(ctx, stationID, ts)
}
