// Package config provides core configuration structures and utilities for the
// gapfill engine. This module defines the Fx providers for configuration.
package config

import "go.uber.org/fx"

// NewEngineConfigProvider extracts and provides *EngineConfig from *Config.
// This allows engine components to depend only on their own thresholds.
func NewEngineConfigProvider(cfg *Config) *EngineConfig {
	return &cfg.Gapfill.Engine
}

// NewLoggingConfigProvider extracts and provides *LoggingConfig from *Config.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Gapfill.System.Logging
}

// Module provides configuration-related components to Fx.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewEngineConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
)
