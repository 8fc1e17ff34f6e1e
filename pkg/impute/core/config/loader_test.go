package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.Gapfill.Engine.ContextWindowSize)
	assert.Equal(t, 3, cfg.Gapfill.Engine.ShortGapMaxH)
	assert.Equal(t, 24, cfg.Gapfill.Engine.MediumGapMaxH)
	assert.Equal(t, 168, cfg.Gapfill.Engine.MinTrainingHours)
	assert.Equal(t, 0.1, cfg.Gapfill.Engine.ValidationSampleFraction)
	assert.Equal(t, 0.5, cfg.Gapfill.Engine.MinR2)
	assert.Equal(t, 10, cfg.Gapfill.Engine.Patience)
	assert.Equal(t, []int{64, 32}, cfg.Gapfill.Engine.HiddenUnits)
	assert.Equal(t, 3600, cfg.Gapfill.Engine.CacheTTLSeconds)
	assert.Equal(t, "INFO", cfg.Gapfill.System.Logging.Level)
}

func TestLoadConfig_EmbeddedYAMLOverridesDefaults(t *testing.T) {
	yml := []byte(`
gapfill:
  system:
    logging:
      level: DEBUG
  engine:
    context_window_size: 12
    short_gap_max_h: 2
    medium_gap_max_h: 12
    value_ceiling: 500
  sweep:
    workers: 8
`)
	cfg, err := LoadConfig("", yml)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Gapfill.Engine.ContextWindowSize)
	assert.Equal(t, 2, cfg.Gapfill.Engine.ShortGapMaxH)
	assert.Equal(t, 12, cfg.Gapfill.Engine.MediumGapMaxH)
	assert.Equal(t, float64(500), cfg.Gapfill.Engine.ValueCeiling)
	assert.Equal(t, 8, cfg.Gapfill.Sweep.Workers)
	assert.Equal(t, "DEBUG", cfg.Gapfill.System.Logging.Level)
	// Untouched values keep their defaults.
	assert.Equal(t, 168, cfg.Gapfill.Engine.MinTrainingHours)
}

func TestLoadConfig_EnvOverridesYAML(t *testing.T) {
	t.Setenv("GAPFILL_ENGINE_CONTEXT_WINDOW_SIZE", "48")
	t.Setenv("GAPFILL_ENGINE_MIN_R2", "0.7")
	t.Setenv("GAPFILL_ENGINE_HIDDEN_UNITS", "16,8")
	t.Setenv("GAPFILL_DATABASE_TYPE", "postgres")
	t.Setenv("GAPFILL_TELEMETRY_ENABLED", "true")

	yml := []byte("gapfill:\n  engine:\n    context_window_size: 12\n")
	cfg, err := LoadConfig("", yml)
	require.NoError(t, err)

	assert.Equal(t, 48, cfg.Gapfill.Engine.ContextWindowSize)
	assert.Equal(t, 0.7, cfg.Gapfill.Engine.MinR2)
	assert.Equal(t, []int{16, 8}, cfg.Gapfill.Engine.HiddenUnits)
	assert.Equal(t, "postgres", cfg.Gapfill.Database.Type)
	assert.True(t, cfg.Gapfill.Telemetry.Enabled)
}

func TestLoadConfig_RejectsInvalidThresholds(t *testing.T) {
	cases := []struct {
		name string
		yml  string
	}{
		{"zero window", "gapfill:\n  engine:\n    context_window_size: -1\n"},
		{"inverted gap bounds", "gapfill:\n  engine:\n    short_gap_max_h: 24\n    medium_gap_max_h: 3\n"},
		{"sample fraction out of range", "gapfill:\n  engine:\n    validation_sample_fraction: 1.5\n"},
		{"ceiling below floor", "gapfill:\n  engine:\n    value_floor: 100\n    value_ceiling: 50\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig("", []byte(tc.yml))
			assert.Error(t, err)
		})
	}
}
