package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// Telemetry bundles the metrics and the tracer provider.
type Telemetry struct {
	Metrics  *Metrics
	provider trace.TracerProvider
	shutdown func(context.Context) error
	logger   *slog.Logger
}

// Decode parses a "telemetry:" node. A zero node yields the defaults.
func Decode(node *yaml.Node) (Config, error) {
	var cfg Config
	if node != nil && node.Kind != 0 {
		if err := node.Decode(&cfg); err != nil {
			return Config{}, err
		}
	}
	cfg = cfg.withDefaults()
	return cfg, cfg.validate()
}

// New builds the telemetry stack. Metrics is nil when disabled.
func New(ctx context.Context, cfg Config, version string, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	t := &Telemetry{logger: logger.With("component", "telemetry")}
	if cfg.MetricsEnabled() {
		t.Metrics = NewMetrics(cfg.Metrics.Namespace)
	}

	tp, shutdown, err := newTracerProvider(ctx, cfg.Tracing, version)
	if err != nil {
		return nil, err
	}
	t.provider = tp
	t.shutdown = shutdown

	t.logger.Info("telemetry: initialized",
		"metrics", t.Metrics != nil,
		"tracing", cfg.Tracing.Enabled,
		"endpoint", cfg.Tracing.Endpoint,
	)
	return t, nil
}

// Tracer returns the majlis tracer.
func (t *Telemetry) Tracer() trace.Tracer {
	return t.provider.Tracer(TracerName)
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}
