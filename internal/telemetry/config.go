// Package telemetry exposes Prometheus metrics and an OpenTelemetry tracer
// provider for majlis. Metrics implement every observer hook of the core
// packages so the wiring can hand them over directly.
package telemetry

import (
	"errors"
	"time"
)

// Config holds the telemetry settings decoded from the top-level
// "telemetry:" section.
type Config struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls the Prometheus registry.
type MetricsConfig struct {
	// Enabled defaults to true. Pointer so an explicit false survives defaults.
	Enabled   *bool  `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig controls the OTLP/HTTP span exporter.
type TracingConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Endpoint    string            `yaml:"endpoint"`
	URLPath     string            `yaml:"url_path"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
	SampleRatio float64           `yaml:"sample_ratio"`
	ServiceName string            `yaml:"service_name"`
	Timeout     time.Duration     `yaml:"timeout"`
}

// MetricsEnabled reports whether metrics are collected.
func (c Config) MetricsEnabled() bool {
	return c.Metrics.Enabled == nil || *c.Metrics.Enabled
}

func (c Config) withDefaults() Config {
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "majlis"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "majlis"
	}
	if c.Tracing.SampleRatio <= 0 {
		c.Tracing.SampleRatio = 1
	}
	if c.Tracing.Timeout <= 0 {
		c.Tracing.Timeout = 10 * time.Second
	}
	return c
}

func (c Config) validate() error {
	var errs []error
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("telemetry: tracing.endpoint is required when tracing is enabled"))
	}
	if c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("telemetry: tracing.sample_ratio must be within (0, 1]"))
	}
	return errors.Join(errs...)
}
