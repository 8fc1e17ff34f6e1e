package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/logger"

	"go.uber.org/fx"
)

// Package config provides utilities for loading the application configuration
// from embedded YAML and environment variables.

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string         `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig loads configuration in three passes: defaults from NewConfig,
// then the embedded YAML, then environment variable overrides derived from
// the yaml tags (e.g. GAPFILL_ENGINE_CONTEXT_WINDOW_SIZE).
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	if len(embeddedConfig) > 0 {
		if err := yaml.Unmarshal(embeddedConfig, cfg); err != nil {
			return nil, exception.NewEngineError(exception.KindInternal, moduleName, "failed to unmarshal embedded config", err)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewEngineError(exception.KindInternal, moduleName, "failed to load config from environment variables", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads configuration from the embedded file and environment variables.
// This function is expected to be called only once during application startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It also sets the global logger level from the loaded configuration.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	GlobalConfig = cfg

	logger.SetLogLevel(cfg.Gapfill.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Gapfill.System.Logging.Level)

	return cfg, nil
}

// validate rejects configurations that would silently break engine invariants.
func validate(cfg *Config) error {
	e := &cfg.Gapfill.Engine
	if e.ContextWindowSize <= 0 {
		return exception.NewEngineErrorf(exception.KindInternal, moduleName, "context_window_size must be positive, got %d", e.ContextWindowSize)
	}
	if e.ShortGapMaxH < 1 || e.MediumGapMaxH <= e.ShortGapMaxH {
		return exception.NewEngineErrorf(exception.KindInternal, moduleName,
			"gap class bounds must satisfy 1 <= short_gap_max_h < medium_gap_max_h, got %d/%d", e.ShortGapMaxH, e.MediumGapMaxH)
	}
	if e.ValidationSampleFraction <= 0 || e.ValidationSampleFraction >= 1 {
		return exception.NewEngineErrorf(exception.KindInternal, moduleName,
			"validation_sample_fraction must be in (0, 1), got %g", e.ValidationSampleFraction)
	}
	if e.TrainSplit <= 0 || e.TrainSplit >= 1 {
		return exception.NewEngineErrorf(exception.KindInternal, moduleName, "train_split must be in (0, 1), got %g", e.TrainSplit)
	}
	if len(e.HiddenUnits) == 0 {
		return exception.NewEngineError(exception.KindInternal, moduleName, "hidden_units must name at least one layer", nil)
	}
	if e.ValueCeiling <= e.ValueFloor {
		return exception.NewEngineErrorf(exception.KindInternal, moduleName,
			"value_ceiling (%g) must exceed value_floor (%g)", e.ValueCeiling, e.ValueFloor)
	}
	return nil
}

// loadStructFromEnv recursively loads configuration values into a struct from
// environment variables. It uses the "yaml" tag to derive the variable name.
//
// prefix: the accumulated environment variable prefix (e.g. "GAPFILL_ENGINE_").
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField assigns a string environment value to a struct field, converting
// to the field's kind. Int slices accept comma-separated values.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("field is not settable")
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.Int {
			return fmt.Errorf("unsupported slice element kind: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		ints := make([]int, 0, len(parts))
		for _, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return err
			}
			ints = append(ints, n)
		}
		field.Set(reflect.ValueOf(ints))
	default:
		return fmt.Errorf("unsupported field kind: %s", field.Kind())
	}
	return nil
}
