package config

// Package config provides structures and utilities for managing the gapfill
// engine configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig holds the tunable thresholds of the imputation engine.
// Every threshold that gates gap classification, training, or certification
// is a named field here rather than an inline constant.
type EngineConfig struct {
	// ContextWindowSize is the number of consecutive hourly values a model
	// input window must contain.
	ContextWindowSize int `yaml:"context_window_size"`
	// ShortGapMaxH is the inclusive upper bound, in hours, of a short gap.
	ShortGapMaxH int `yaml:"short_gap_max_h"`
	// MediumGapMaxH is the inclusive upper bound, in hours, of a medium gap.
	// Anything longer is a long gap and is never imputed.
	MediumGapMaxH int `yaml:"medium_gap_max_h"`
	// MinTrainingHours is the minimum number of valid, non-imputed hourly
	// readings a station needs before a model can be trained.
	MinTrainingHours int `yaml:"min_training_hours"`
	// ValidationSampleFraction is the fraction of known-good readings held
	// out by the Validator.
	ValidationSampleFraction float64 `yaml:"validation_sample_fraction"`
	// MinR2 is the minimum out-of-sample R² a model must reach to be certified.
	MinR2 float64 `yaml:"min_r2"`
	// Patience is the number of epochs without validation-loss improvement
	// tolerated before training stops early.
	Patience int `yaml:"patience"`
	// HiddenUnits are the recurrent layer sizes, outermost first.
	HiddenUnits []int `yaml:"hidden_units"`
	// Dropout is the dropout rate applied between the recurrent layers.
	Dropout float64 `yaml:"dropout"`
	// LearningRate is the Adam learning rate.
	LearningRate float64 `yaml:"learning_rate"`
	// MaxEpochs caps the number of training epochs.
	MaxEpochs int `yaml:"max_epochs"`
	// TrainSplit is the chronological fraction of windows used for fitting;
	// the remainder is the early-stopping validation set.
	TrainSplit float64 `yaml:"train_split"`
	// ValueFloor is the lower physical bound of the tracked parameter.
	ValueFloor float64 `yaml:"value_floor"`
	// ValueCeiling is the upper physical bound of the tracked parameter.
	ValueCeiling float64 `yaml:"value_ceiling"`
	// CacheTTLSeconds is the time-to-live of a cached model artifact.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	// Seed fixes the weight initialization and dropout RNG. Zero means
	// seed from the clock.
	Seed int64 `yaml:"seed"`
}

// SweepConfig holds batch sweep settings.
type SweepConfig struct {
	// Workers is the number of stations processed concurrently.
	Workers int `yaml:"workers"`
	// LookbackHours is how far back from now a sweep scans each station.
	LookbackHours int `yaml:"lookback_hours"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns    int `yaml:"max_open_conns"`
	MaxIdleConns    int `yaml:"max_idle_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"` // seconds
}

// DatabaseConfig holds the connection settings of the readings store.
type DatabaseConfig struct {
	// Type selects the dialector: "postgres", "mysql" or "sqlite".
	Type     string     `yaml:"type"`
	Host     string     `yaml:"host"`
	Port     int        `yaml:"port"`
	User     string     `yaml:"user"`
	Password string     `yaml:"password"`
	Database string     `yaml:"database"`
	SSLMode  string     `yaml:"sslmode"`
	Pool     PoolConfig `yaml:"pool"`
}

// StorageConfig holds artifact blob storage settings.
type StorageConfig struct {
	// Type selects the adapter: "local" or "gcs".
	Type string `yaml:"type"`
	// BaseDir is the root directory for the local adapter.
	BaseDir string `yaml:"base_dir"`
	// Bucket is the bucket name for the GCS adapter.
	Bucket string `yaml:"bucket"`
	// Prefix is prepended to every object name.
	Prefix string `yaml:"prefix"`
	// CredentialsFile is the optional service account file for the GCS adapter.
	CredentialsFile string `yaml:"credentials_file"`
}

// TelemetryConfig holds OTLP export settings.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
	// Protocol selects the OTLP transport: "grpc" or "http".
	Protocol string `yaml:"protocol"`
	// Endpoint is the collector endpoint (host:port).
	Endpoint string `yaml:"endpoint"`
	// ServiceName is reported as the OTel service.name resource attribute.
	ServiceName string `yaml:"service_name"`
	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`
}

// GapfillConfig holds all configuration under the "gapfill" top-level key.
// Export holds untyped exporter properties; the exporter decodes them into
// its own typed configuration.
type GapfillConfig struct {
	System    SystemConfig           `yaml:"system"`
	Engine    EngineConfig           `yaml:"engine"`
	Sweep     SweepConfig            `yaml:"sweep"`
	Database  DatabaseConfig         `yaml:"database"`
	Storage   StorageConfig          `yaml:"storage"`
	Telemetry TelemetryConfig        `yaml:"telemetry"`
	Export    map[string]interface{} `yaml:"export"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Gapfill GapfillConfig `yaml:"gapfill"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a Config populated with engine defaults. Embedded YAML
// and environment variables are merged on top of these values.
func NewConfig() *Config {
	return &Config{
		Gapfill: GapfillConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Engine: EngineConfig{
				ContextWindowSize:        24,
				ShortGapMaxH:             3,
				MediumGapMaxH:            24,
				MinTrainingHours:         168,
				ValidationSampleFraction: 0.1,
				MinR2:                    0.5,
				Patience:                 10,
				HiddenUnits:              []int{64, 32},
				Dropout:                  0.2,
				LearningRate:             0.001,
				MaxEpochs:                100,
				TrainSplit:               0.8,
				ValueFloor:               0,
				ValueCeiling:             200,
				CacheTTLSeconds:          3600,
			},
			Sweep: SweepConfig{Workers: 4, LookbackHours: 720},
			Database: DatabaseConfig{
				Type:     "sqlite",
				Database: "gapfill.db",
				Pool:     PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 300},
			},
			Storage: StorageConfig{Type: "local", BaseDir: "artifacts"},
			Telemetry: TelemetryConfig{
				Enabled:     false,
				Protocol:    "grpc",
				Endpoint:    "localhost:4317",
				ServiceName: "gapfill",
				Insecure:    true,
			},
			Export: map[string]interface{}{
				"output_base_dir": "audit",
				"compression":     "SNAPPY",
			},
		},
	}
}

// GlobalConfig is a pointer to the configuration instance shared across the application.
// It is expected to be set via fx.Supply or fx.Provide.
var GlobalConfig *Config
