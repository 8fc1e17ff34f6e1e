// Package sweep implements batch orchestration across the station registry:
// a bounded worker pool runs gap-fill or training work per station, failures
// are aggregated without aborting other stations, and cancellation is
// observed between stations.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/gapfill/pkg/impute/core/config"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/repository"
	"github.com/tigerroll/gapfill/pkg/impute/core/metrics"
	"github.com/tigerroll/gapfill/pkg/impute/engine"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/logger"
)

const moduleName = "sweep"

// Station outcome labels.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// StationOutcome is one row of a sweep report.
type StationOutcome struct {
	StationID string
	Outcome   string
	// GapsFound is the number of gaps detected (gap-fill sweeps only).
	GapsFound int
	// HoursImputed counts written imputations.
	HoursImputed int
	// HoursSkipped counts gap hours left unfilled (no context, no model,
	// or part of a long gap).
	HoursSkipped int
	// ModelVersion is the version trained or validated, when applicable.
	ModelVersion int
	// Message carries the skip reason or failure message.
	Message string
}

// Report summarizes one sweep. Stations holds one row per processed station;
// with Interrupted set, unprocessed stations have no row and the sweep can
// be resumed from the registry minus the reported stations.
type Report struct {
	Kind        string
	StartedAt   time.Time
	Duration    time.Duration
	Succeeded   int
	Failed      int
	Skipped     int
	Interrupted bool
	Stations    []StationOutcome
}

// Runner executes sweeps over all registered stations with bounded
// concurrency. Per-station serialization of training against imputation is
// enforced by the engine facade, so concurrent gap-fill and training sweeps
// stay safe.
type Runner struct {
	engine   *engine.Engine
	stations repository.StationRepository
	cfg      *config.Config
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
}

// NewRunner creates a new Runner.
func NewRunner(
	eng *engine.Engine,
	stations repository.StationRepository,
	cfg *config.Config,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *Runner {
	return &Runner{
		engine:   eng,
		stations: stations,
		cfg:      cfg,
		recorder: recorder,
		tracer:   tracer,
	}
}

// GapFillSweep detects gaps in [start, end] for every registered station and
// imputes each hour of every short and medium gap. Long gaps are reported
// and left untouched. Per-station failures are aggregated; no station aborts
// another.
func (r *Runner) GapFillSweep(ctx context.Context, start, end time.Time) (*Report, error) {
	return r.run(ctx, "gapfill", func(ctx context.Context, stationID string) StationOutcome {
		return r.fillStation(ctx, stationID, start, end)
	})
}

// TrainSweep trains and validates a fresh model version for every registered
// station from its readings in [start, end]. Stations with insufficient
// history are skipped, not failed.
func (r *Runner) TrainSweep(ctx context.Context, start, end time.Time) (*Report, error) {
	return r.run(ctx, "train", func(ctx context.Context, stationID string) StationOutcome {
		return r.trainStation(ctx, stationID, start, end)
	})
}

// run pushes every station through the worker pool and assembles the report.
// Workers stop pulling new stations once ctx is cancelled; in-flight
// stations complete.
func (r *Runner) run(ctx context.Context, kind string, work func(context.Context, string) StationOutcome) (*Report, error) {
	startedAt := time.Now()
	ctx, endSpan := r.tracer.StartSweepSpan(ctx, kind)
	defer endSpan()

	stations, err := r.stations.List(ctx)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName,
			"failed to list stations for sweep", err)
	}

	workers := r.cfg.Gapfill.Sweep.Workers
	if workers < 1 {
		workers = 1
	}
	logger.Infof("Starting %s sweep over %d stations (%d workers)", kind, len(stations), workers)

	queue := make(chan string)
	results := make(chan StationOutcome, len(stations))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stationID := range queue {
				sctx, endStation := r.tracer.StartStationSpan(ctx, kind, stationID)
				outcome := work(sctx, stationID)
				endStation()
				results <- outcome
			}
		}()
	}

	interrupted := false
feed:
	for _, s := range stations {
		select {
		case <-ctx.Done():
			interrupted = true
			break feed
		case queue <- s.ID:
		}
	}
	close(queue)
	wg.Wait()
	close(results)

	report := &Report{Kind: kind, StartedAt: startedAt, Interrupted: interrupted}
	var errs *multierror.Error
	for outcome := range results {
		report.Stations = append(report.Stations, outcome)
		switch outcome.Outcome {
		case OutcomeSucceeded:
			report.Succeeded++
		case OutcomeFailed:
			report.Failed++
			errs = multierror.Append(errs, fmt.Errorf("station %s: %s", outcome.StationID, outcome.Message))
		case OutcomeSkipped:
			report.Skipped++
		}
	}
	report.Duration = time.Since(startedAt)

	r.recorder.RecordSweep(ctx, kind, report.Duration, report.Succeeded, report.Failed, report.Skipped)
	logger.Infof("Finished %s sweep in %s (succeeded: %d, failed: %d, skipped: %d, interrupted: %t)",
		kind, report.Duration, report.Succeeded, report.Failed, report.Skipped, report.Interrupted)

	return report, errs.ErrorOrNil()
}

// fillStation runs gap detection and imputation for one station. Expected
// outcomes (no context, no model) skip hours without failing the station;
// only store failures and internal errors fail it.
func (r *Runner) fillStation(ctx context.Context, stationID string, start, end time.Time) StationOutcome {
	outcome := StationOutcome{StationID: stationID, Outcome: OutcomeSucceeded}

	gaps, err := r.engine.DetectGaps(ctx, stationID, start, end)
	if err != nil {
		r.tracer.RecordError(ctx, moduleName, err)
		return StationOutcome{StationID: stationID, Outcome: OutcomeFailed, Message: err.Error()}
	}
	outcome.GapsFound = len(gaps)

	for _, g := range gaps {
		if g.Class == model.GapLong {
			logger.Warnf("Station '%s' has a long gap of %dh starting %s, not imputing",
				stationID, g.DurationHours(), g.Start.Format(time.RFC3339))
			r.recorder.RecordImputationSkipped(ctx, stationID, "long_gap")
			outcome.HoursSkipped += g.DurationHours()
			continue
		}
		for ts := g.Start; !ts.After(g.End); ts = ts.Add(time.Hour) {
			_, err := r.engine.Impute(ctx, stationID, ts)
			switch {
			case err == nil:
				outcome.HoursImputed++
			case exception.IsExpectedOutcome(err):
				logger.Debugf("Skipping %s for station '%s': %v", ts.Format(time.RFC3339), stationID, err)
				outcome.HoursSkipped++
			default:
				r.tracer.RecordError(ctx, moduleName, err)
				return StationOutcome{
					StationID:    stationID,
					Outcome:      OutcomeFailed,
					GapsFound:    outcome.GapsFound,
					HoursImputed: outcome.HoursImputed,
					HoursSkipped: outcome.HoursSkipped,
					Message:      err.Error(),
				}
			}
		}
	}

	if outcome.GapsFound == 0 {
		outcome.Outcome = OutcomeSkipped
		outcome.Message = "no gaps"
	}
	return outcome
}

// trainStation trains and validates one station. Insufficient history is a
// skip; a training or validation failure fails the station.
func (r *Runner) trainStation(ctx context.Context, stationID string, start, end time.Time) StationOutcome {
	result, err := r.engine.Train(ctx, stationID, start, end)
	if err != nil {
		if exception.IsExpectedOutcome(err) {
			return StationOutcome{StationID: stationID, Outcome: OutcomeSkipped, Message: err.Error()}
		}
		r.tracer.RecordError(ctx, moduleName, err)
		return StationOutcome{StationID: stationID, Outcome: OutcomeFailed, Message: err.Error()}
	}

	validation, err := r.engine.Validate(ctx, stationID, start, end)
	if err != nil {
		r.tracer.RecordError(ctx, moduleName, err)
		return StationOutcome{
			StationID:    stationID,
			Outcome:      OutcomeFailed,
			ModelVersion: result.ModelVersion,
			Message:      err.Error(),
		}
	}

	outcome := StationOutcome{
		StationID:    stationID,
		Outcome:      OutcomeSucceeded,
		ModelVersion: result.ModelVersion,
	}
	if !validation.Certified {
		outcome.Message = "model rejected by validation"
	}
	return outcome
}
