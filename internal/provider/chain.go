// Package provider defines the language-model, search and media interfaces,
// and a failover chain that tracks provider health.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// nopHandler discards all log records. Enabled returns false so slog skips
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// ChainEntry configures a single provider in the chain.
type ChainEntry struct {
	Name     string
	Provider Provider
	Health   HealthConfig
}

type chainEntry struct {
	ChainEntry
	health *healthTracker
}

// ChainOption configures optional Chain behavior.
type ChainOption func(*Chain)

// WithLogger injects a structured logger into the Chain.
// When nil or omitted, log output is discarded.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// Chain tries providers in order, skipping those in cooldown, and fails
// over on transient errors. It implements Provider.
type Chain struct {
	entries []chainEntry
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Provider = (*Chain)(nil)

// NewChain creates a chain from the given entries, in priority order.
func NewChain(entries []ChainEntry, opts ...ChainOption) (*Chain, error) {
	if len(entries) == 0 {
		return nil, ErrNoProvider
	}

	c := &Chain{entries: make([]chainEntry, len(entries))}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(nopHandler{})
	}

	for i, e := range entries {
		if e.Provider == nil {
			return nil, fmt.Errorf("%w: entry %q has nil provider", ErrNoProvider, e.Name)
		}
		c.entries[i] = chainEntry{ChainEntry: e, health: newHealthTracker(e.Health)}
		c.entries[i].health.onStateChange = c.stateLogger(e.Name)
	}
	return c, nil
}

func (c *Chain) stateLogger(name string) func(from, to healthState) {
	return func(from, to healthState) {
		switch to {
		case stateCooldown:
			c.logger.Warn("provider: entered cooldown", "provider", name, "previous_state", from.String())
		case stateDead:
			c.logger.Error("provider: marked dead", "provider", name)
		case stateHealthy:
			c.logger.Info("provider: revived", "provider", name, "previous_state", from.String())
		}
	}
}

// ModelName returns the names of the chained models, in priority order.
func (c *Chain) ModelName() string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Provider.ModelName()
	}
	return strings.Join(names, ",")
}

// Complete sends the request to the first available provider, failing over
// on retryable errors. Non-retryable errors are returned immediately.
func (c *Chain) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var lastErr error
	for i := range c.entries {
		e := &c.entries[i]
		if err := ctx.Err(); err != nil {
			return CompletionResponse{}, err
		}
		if !e.health.IsAvailable() {
			continue
		}

		resp, err := e.Provider.Complete(ctx, req)
		if err == nil {
			e.health.RecordSuccess()
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return CompletionResponse{}, err
		}

		e.health.RecordFailure()
		c.logger.Warn("provider: failed, failing over", "provider", e.Name, "error", err)
	}

	if lastErr != nil {
		return CompletionResponse{}, fmt.Errorf("%w: last error: %w", ErrAllProviders, lastErr)
	}
	return CompletionResponse{}, fmt.Errorf("%w: all candidates unavailable", ErrAllProviders)
}

// Start launches the background health check loop.
func (c *Chain) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.healthLoop(ctx, minCheckInterval(c.entries))
}

// Stop cancels the health check loop and waits for it to exit.
func (c *Chain) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (c *Chain) healthLoop(ctx context.Context, interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i := range c.entries {
				e := &c.entries[i]
				checker, ok := e.Provider.(HealthChecker)
				if !ok || !e.health.ShouldHealthCheck() {
					continue
				}
				if err := checker.HealthCheck(ctx); err == nil {
					e.health.RecordSuccess()
				}
			}
		}
	}
}

func minCheckInterval(entries []chainEntry) time.Duration {
	interval := entries[0].Health.checkInterval()
	for _, e := range entries[1:] {
		interval = min(interval, e.Health.checkInterval())
	}
	return interval
}

// Status is the health snapshot of one chained provider.
type Status struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	State     string `json:"state"`
	Available bool   `json:"available"`
}

// HealthReport returns the state of every provider, in priority order.
func (c *Chain) HealthReport() []Status {
	out := make([]Status, len(c.entries))
	for i, e := range c.entries {
		out[i] = Status{
			Name:      e.Name,
			Model:     e.Provider.ModelName(),
			State:     e.health.State().String(),
			Available: e.health.IsAvailable(),
		}
	}
	return out
}
