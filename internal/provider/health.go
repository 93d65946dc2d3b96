package provider

import (
	"sync"
	"time"
)

type healthState int

const (
	stateHealthy healthState = iota
	stateCooldown
	stateDead
)

func (s healthState) String() string {
	switch s {
	case stateHealthy:
		return "healthy"
	case stateCooldown:
		return "cooldown"
	case stateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// HealthConfig controls health tracking behavior.
type HealthConfig struct {
	// InitialBackoff is the cooldown after the first failure. Default: 1s.
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the exponential backoff. Default: 60s.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// MaxFailures is the number of consecutive failures before the
	// provider is marked dead. Default: 5.
	MaxFailures int `yaml:"max_failures"`

	// CheckInterval is how often dead providers are checked. Default: 10s.
	CheckInterval time.Duration `yaml:"check_interval"`
}

func (c HealthConfig) checkInterval() time.Duration {
	if c.CheckInterval <= 0 {
		return 10 * time.Second
	}
	return c.CheckInterval
}

func (c *HealthConfig) defaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 60 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	c.CheckInterval = c.checkInterval()
}

// healthTracker applies exponential backoff on consecutive failures and
// marks the provider dead after MaxFailures.
type healthTracker struct {
	cfg HealthConfig

	// onStateChange is called outside the lock on every transition.
	onStateChange func(from, to healthState)

	mu       sync.Mutex
	state    healthState
	failures int
	backoff  time.Duration
	until    time.Time

	now func() time.Time
}

func newHealthTracker(cfg HealthConfig) *healthTracker {
	cfg.defaults()
	return &healthTracker{cfg: cfg, now: time.Now}
}

// IsAvailable reports whether the provider can accept requests.
// A provider in cooldown becomes available once its backoff expires.
func (h *healthTracker) IsAvailable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case stateHealthy:
		return true
	case stateCooldown:
		return !h.now().Before(h.until)
	default:
		return false
	}
}

// ShouldHealthCheck reports whether the provider needs an active health check.
func (h *healthTracker) ShouldHealthCheck() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == stateDead || (h.state == stateCooldown && !h.now().Before(h.until))
}

func (h *healthTracker) RecordSuccess() {
	h.transition(func() healthState {
		h.failures = 0
		h.backoff = 0
		return stateHealthy
	})
}

func (h *healthTracker) RecordFailure() {
	h.transition(func() healthState {
		h.failures++
		if h.failures >= h.cfg.MaxFailures {
			return stateDead
		}
		if h.backoff == 0 {
			h.backoff = h.cfg.InitialBackoff
		} else {
			h.backoff = min(h.backoff*2, h.cfg.MaxBackoff)
		}
		h.until = h.now().Add(h.backoff)
		return stateCooldown
	})
}

func (h *healthTracker) transition(apply func() healthState) {
	h.mu.Lock()
	prev := h.state
	h.state = apply()
	next := h.state
	h.mu.Unlock()

	if prev != next && h.onStateChange != nil {
		h.onStateChange(prev, next)
	}
}

func (h *healthTracker) State() healthState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}
