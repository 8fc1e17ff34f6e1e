// Package gap implements the gap detector and duration classifier.
// A gap is a maximal run of missing hourly readings for one station; an
// absent row and a null value are treated identically as missing.
package gap

import (
	"context"
	"time"

	"github.com/tigerroll/gapfill/pkg/impute/core/config"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	"github.com/tigerroll/gapfill/pkg/impute/core/domain/repository"
	"github.com/tigerroll/gapfill/pkg/impute/core/metrics"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/logger"
)

const moduleName = "gap"

// Detector scans a station's time series for missing hourly timestamps and
// classifies the resulting gaps. Detection is a pure read; the detector
// never writes to the store.
type Detector struct {
	readings repository.ReadingRepository
	stations repository.StationRepository
	cfg      *config.EngineConfig
	recorder metrics.MetricRecorder
}

// NewDetector creates a new Detector.
func NewDetector(
	readings repository.ReadingRepository,
	stations repository.StationRepository,
	cfg *config.EngineConfig,
	recorder metrics.MetricRecorder,
) *Detector {
	return &Detector{
		readings: readings,
		stations: stations,
		cfg:      cfg,
		recorder: recorder,
	}
}

// Scanner is a finite, restartable iterator over the gaps of one scanned
// range. The expensive store read happens once, in Scan; walking the hourly
// slots and merging adjacent missing hours happens lazily in Next.
type Scanner struct {
	detector  *Detector
	stationID string
	start     time.Time
	end       time.Time
	present   map[int64]bool
	cursor    time.Time
}

// Scan validates the inputs, reads the range from the store once, and
// returns a Scanner positioned before the first gap. It fails with
// StoreUnavailable if the store cannot be read; no partial classification
// is ever produced.
func (d *Detector) Scan(ctx context.Context, stationID string, start, end time.Time) (*Scanner, error) {
	start = start.UTC().Truncate(time.Hour)
	end = end.UTC().Truncate(time.Hour)
	if end.Before(start) {
		return nil, exception.NewEngineErrorf(exception.KindInternal, moduleName,
			"range end %s precedes start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	exists, err := d.stations.Exists(ctx, stationID)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName, "failed to look up station", err)
	}
	if !exists {
		return nil, exception.NewEngineError(exception.KindInternal, moduleName,
			"unknown station "+stationID, repository.ErrStationNotFound)
	}

	rows, err := d.readings.GetReadings(ctx, stationID, start, end)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, moduleName, "failed to read range from store", err)
	}

	present := make(map[int64]bool, len(rows))
	for i := range rows {
		if !rows[i].Missing() {
			present[rows[i].Timestamp.UTC().Truncate(time.Hour).Unix()] = true
		}
	}

	return &Scanner{
		detector:  d,
		stationID: stationID,
		start:     start,
		end:       end,
		present:   present,
		cursor:    start,
	}, nil
}

// Next returns the next gap in the range, merging adjacent missing hours
// into a single gap. The second return value is false once the range is
// exhausted.
func (s *Scanner) Next() (model.Gap, bool) {
	for !s.cursor.After(s.end) {
		if s.present[s.cursor.Unix()] {
			s.cursor = s.cursor.Add(time.Hour)
			continue
		}

		// Open gap: extend until the first present timestamp or range end.
		gapStart := s.cursor
		gapEnd := s.cursor
		for next := s.cursor.Add(time.Hour); !next.After(s.end) && !s.present[next.Unix()]; next = next.Add(time.Hour) {
			gapEnd = next
		}
		s.cursor = gapEnd.Add(time.Hour)

		g := model.Gap{
			StationID: s.stationID,
			Start:     gapStart,
			End:       gapEnd,
		}
		g.Class = s.detector.classify(g.DurationHours())
		return g, true
	}
	return model.Gap{}, false
}

// Reset rewinds the scanner to the beginning of the scanned range.
func (s *Scanner) Reset() {
	s.cursor = s.start
}

// Detect collects every gap in [start, end] into a slice.
func (d *Detector) Detect(ctx context.Context, stationID string, start, end time.Time) ([]model.Gap, error) {
	scanner, err := d.Scan(ctx, stationID, start, end)
	if err != nil {
		return nil, err
	}

	gaps := make([]model.Gap, 0)
	for g, ok := scanner.Next(); ok; g, ok = scanner.Next() {
		d.recorder.RecordGapDetected(ctx, stationID, string(g.Class), g.DurationHours())
		gaps = append(gaps, g)
	}
	logger.Debugf("Detected %d gap(s) for station %s in [%s, %s]",
		len(gaps), stationID, start.Format(time.RFC3339), end.Format(time.RFC3339))
	return gaps, nil
}

// classify labels a gap duration. Bounds are inclusive: exactly
// short_gap_max_h hours is still short, exactly medium_gap_max_h is medium.
func (d *Detector) classify(hours int) model.GapClass {
	switch {
	case hours <= d.cfg.ShortGapMaxH:
		return model.GapShort
	case hours <= d.cfg.MediumGapMaxH:
		return model.GapMedium
	default:
		return model.GapLong
	}
}
