// Package model defines the domain entities of the gapfill engine: station
// readings, derived gaps, model context windows, persisted model artifacts,
// and the append-only audit rows.
package model

import "time"

// Parameter is the tracked sensor parameter imputed by this engine.
// The store carries one value column per reading; the parameter name is
// recorded in audit rows for provenance.
const Parameter = "precip_mm"

// Reading is one row of the per-station hourly time series.
// A nil Value and an absent row both mean "missing" and are treated
// identically by the gap detector.
type Reading struct {
	StationID    string     `gorm:"column:station_id;primaryKey"`
	Timestamp    time.Time  `gorm:"column:ts;primaryKey"`
	Value        *float64   `gorm:"column:value"`
	IsImputed    bool       `gorm:"column:is_imputed"`
	ModelVersion *int       `gorm:"column:model_version"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for Reading.
func (Reading) TableName() string { return "readings" }

// Missing reports whether this reading carries no observed value.
func (r *Reading) Missing() bool {
	return r == nil || r.Value == nil
}

// Station is a registered sensor station.
type Station struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	Latitude  float64   `gorm:"column:lat"`
	Longitude float64   `gorm:"column:lon"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for Station.
func (Station) TableName() string { return "stations" }

// GapClass labels a gap by duration. Bounds are inclusive: a gap of exactly
// ShortGapMaxH hours is short, exactly MediumGapMaxH hours is medium.
type GapClass string

const (
	// GapShort is a gap of 1 up to short_gap_max_h hours.
	GapShort GapClass = "short"
	// GapMedium is a gap of short_gap_max_h+1 up to medium_gap_max_h hours.
	GapMedium GapClass = "medium"
	// GapLong is a gap longer than medium_gap_max_h hours. Long gaps are
	// flagged only and never passed to the predictor.
	GapLong GapClass = "long"
)

// Gap is a maximal run of missing hourly readings for one station.
// Gaps are derived by the detector and never persisted.
type Gap struct {
	StationID string
	// Start is the first missing hourly timestamp.
	Start time.Time
	// End is the last missing hourly timestamp (inclusive).
	End   time.Time
	Class GapClass
}

// DurationHours returns the number of missing hourly slots covered by the gap.
func (g Gap) DurationHours() int {
	return int(g.End.Sub(g.Start)/time.Hour) + 1
}

// ContextWindow is an ordered run of exactly N consecutive valid hourly
// values ending immediately before a target timestamp. Consecutive entries
// are exactly one hour apart; a window violating that is never constructed.
type ContextWindow struct {
	StationID string
	// Target is the missing timestamp the window was built for.
	Target time.Time
	// Start is the timestamp of Values[0].
	Start time.Time
	// End is the timestamp of the last value, always Target - 1h.
	End time.Time
	// Values are the observed values, oldest first.
	Values []float64
}

// Size returns the window length.
func (w *ContextWindow) Size() int { return len(w.Values) }

// ArtifactStatus is the certification state of a model artifact.
type ArtifactStatus string

const (
	// ArtifactPending is the state of a freshly trained model that has not
	// been validated yet. Pending models may impute.
	ArtifactPending ArtifactStatus = "pending"
	// ArtifactCertified marks a model accepted by the validator.
	ArtifactCertified ArtifactStatus = "certified"
	// ArtifactRejected marks a model the validator refused. Rejected models
	// must never produce new imputations.
	ArtifactRejected ArtifactStatus = "rejected"
)

// ModelArtifact is the immutable metadata row of one trained model+scaler
// pair. The weight blob itself lives in blob storage under ObjectName.
// Retraining writes a new row with Version+1; prior rows are retained for
// audit and rollback until explicitly pruned.
type ModelArtifact struct {
	StationID  string         `gorm:"column:station_id;primaryKey"`
	Version    int            `gorm:"column:version;primaryKey"`
	Status     ArtifactStatus `gorm:"column:status"`
	ObjectName string         `gorm:"column:object_name"`
	WindowSize int            `gorm:"column:window_size"`
	TrainedAt  time.Time      `gorm:"column:trained_at"`
	TrainRMSE  float64        `gorm:"column:train_rmse"`
	TrainMAE   float64        `gorm:"column:train_mae"`
	TrainR2    float64        `gorm:"column:train_r2"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for ModelArtifact.
func (ModelArtifact) TableName() string { return "model_artifacts" }

// Usable reports whether the predictor may impute with this artifact.
func (a *ModelArtifact) Usable() bool {
	return a != nil && a.Status != ArtifactRejected
}

// TrainingLog is the append-only audit row of one training attempt.
type TrainingLog struct {
	ID           string    `gorm:"column:id;primaryKey"`
	StationID    string    `gorm:"column:station_id"`
	ModelVersion int       `gorm:"column:model_version"`
	TrainSamples int       `gorm:"column:train_samples"`
	ValSamples   int       `gorm:"column:val_samples"`
	RMSE         float64   `gorm:"column:rmse"`
	MAE          float64   `gorm:"column:mae"`
	R2           float64   `gorm:"column:r2"`
	DurationMS   int64     `gorm:"column:duration_ms"`
	Outcome      string    `gorm:"column:outcome"`
	Message      string    `gorm:"column:message"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for TrainingLog.
func (TrainingLog) TableName() string { return "training_log" }

// ImputationLog is the append-only audit row of one imputation.
// Exactly one non-superseded row exists per imputed (station, timestamp,
// parameter); rollback and deterministic overwrite supersede the prior row
// instead of deleting it.
type ImputationLog struct {
	ID           string     `gorm:"column:id;primaryKey"`
	StationID    string     `gorm:"column:station_id;index:idx_imputation_target"`
	Timestamp    time.Time  `gorm:"column:ts;index:idx_imputation_target"`
	Parameter    string     `gorm:"column:parameter"`
	Value        float64    `gorm:"column:value"`
	Method       string     `gorm:"column:method"`
	WindowStart  time.Time  `gorm:"column:window_start"`
	WindowEnd    time.Time  `gorm:"column:window_end"`
	ModelVersion int        `gorm:"column:model_version"`
	// ErrorBound is the estimated error of the imputed value, taken from the
	// training RMSE of the model that produced it. Nil when unknown.
	ErrorBound   *float64   `gorm:"column:error_bound"`
	Clamped      bool       `gorm:"column:clamped"`
	ModelStatus  string     `gorm:"column:model_status"`
	SupersededAt *time.Time `gorm:"column:superseded_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for ImputationLog.
func (ImputationLog) TableName() string { return "imputation_log" }

// ValidationLog is the append-only audit row of one validation run.
type ValidationLog struct {
	ID           string    `gorm:"column:id;primaryKey"`
	StationID    string    `gorm:"column:station_id"`
	ModelVersion int       `gorm:"column:model_version"`
	SampleSize   int       `gorm:"column:sample_size"`
	ModelRMSE    float64   `gorm:"column:model_rmse"`
	ModelMAE     float64   `gorm:"column:model_mae"`
	ModelR2      float64   `gorm:"column:model_r2"`
	LinearRMSE   float64   `gorm:"column:linear_rmse"`
	LinearMAE    float64   `gorm:"column:linear_mae"`
	LinearR2     float64   `gorm:"column:linear_r2"`
	FFillRMSE    float64   `gorm:"column:ffill_rmse"`
	FFillMAE     float64   `gorm:"column:ffill_mae"`
	FFillR2      float64   `gorm:"column:ffill_r2"`
	Certified    bool      `gorm:"column:certified"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for ValidationLog.
func (ValidationLog) TableName() string { return "validation_log" }

// TrainingResult is returned by a successful Train call.
type TrainingResult struct {
	StationID    string
	ModelVersion int
	TrainSamples int
	ValSamples   int
	RMSE         float64
	MAE          float64
	R2           float64
	Duration     time.Duration
}

// ImputedValue is returned by a successful Impute call.
type ImputedValue struct {
	StationID    string
	Timestamp    time.Time
	Value        float64
	ModelVersion int
	// Clamped reports that the raw prediction fell outside the physical
	// range and was clamped.
	Clamped bool
	// ErrorBound is the estimated error of the value (training RMSE).
	ErrorBound float64
}

// ValidationResult is returned by a Validate call.
type ValidationResult struct {
	StationID    string
	ModelVersion int
	SampleSize   int
	Model        Metrics
	Linear       Metrics
	FFill        Metrics
	Certified    bool
}

// Metrics bundles the accuracy metrics computed for a predictor or baseline.
type Metrics struct {
	RMSE float64
	MAE  float64
	R2   float64
}
