// Package config handles YAML configuration loading, environment variable
// expansion and structural validation for majlis.
package config

import "gopkg.in/yaml.v3"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir overrides the directory holding the SQLite database.
	DataDir string `yaml:"data_dir,omitempty"`

	// LogLevel is "debug", "info", "warn" or "error". The --log-level flag
	// takes precedence. Changes are applied without a restart.
	LogLevel string `yaml:"log_level,omitempty"`

	// Agent holds the orchestrator tuning (personas, memory caps, budgets,
	// timeouts). It is decoded by the application wiring.
	Agent yaml.Node `yaml:"agent,omitempty"`

	// Telemetry holds metrics and tracing settings.
	Telemetry yaml.Node `yaml:"telemetry,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "provider.gemini").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// HasAgent reports whether an agent section was provided.
func (c *Config) HasAgent() bool { return c.Agent.Kind != 0 }

// HasTelemetry reports whether a telemetry section was provided.
func (c *Config) HasTelemetry() bool { return c.Telemetry.Kind != 0 }
