// Package planner decomposes a user request into ordered steps with one
// structured generation call, falling back to the request itself.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/majlis/internal/provider"
)

// Config tunes the planner.
type Config struct {
	// MaxSteps truncates longer plans. Default: 8.
	MaxSteps int `yaml:"max_steps"`

	// MaxTokens bounds the planning call. Default: 500.
	MaxTokens int `yaml:"max_tokens"`

	// Timeout bounds the planning call. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 8
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 500
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

const systemPrompt = "أنت مخطط مهام. تُرجع JSON فقط دون أي نص إضافي."

const planTemplate = `قسّم الطلب التالي إلى خطوات تنفيذية قصيرة ومرتبة (من 3 إلى 6 خطوات).

السياق:
%s

الطلب:
%s

أجب بكائن JSON فقط بالشكل التالي:
{"steps": ["الخطوة الأولى", "الخطوة الثانية"]}`

// Planner produces execution plans.
type Planner struct {
	provider   provider.Provider
	cfg        Config
	logger     *slog.Logger
	onFallback func(reason error)
}

// Option configures a Planner.
type Option func(*Planner)

// WithFallbackHook registers fn, called with the cause each time Plan
// falls back to the single-step plan.
func WithFallbackHook(fn func(reason error)) Option {
	return func(p *Planner) { p.onFallback = fn }
}

// New creates a Planner.
func New(p provider.Provider, cfg Config, logger *slog.Logger, opts ...Option) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	pl := &Planner{
		provider: p,
		cfg:      cfg.withDefaults(),
		logger:   logger.With("component", "planner"),
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Plan returns at least one step. Any provider, parse or schema failure
// yields []string{request}. Plans longer than MaxSteps are truncated.
func (pl *Planner) Plan(ctx context.Context, request, contextBlock string) []string {
	ctx, cancel := context.WithTimeout(ctx, pl.cfg.Timeout)
	defer cancel()

	if strings.TrimSpace(contextBlock) == "" {
		contextBlock = "لا يوجد"
	}
	raw, err := provider.Generate(ctx, pl.provider, fmt.Sprintf(planTemplate, contextBlock, request), systemPrompt, pl.cfg.MaxTokens, 0.2)
	if err != nil {
		return pl.fallback(request, err)
	}

	steps, err := Parse(raw)
	if err != nil {
		return pl.fallback(request, err)
	}
	if len(steps) > pl.cfg.MaxSteps {
		pl.logger.Warn("planner: plan truncated", "steps", len(steps), "max", pl.cfg.MaxSteps)
		steps = steps[:pl.cfg.MaxSteps]
	}
	pl.logger.Debug("planner: plan ready", "steps", len(steps))
	return steps
}

func (pl *Planner) fallback(request string, reason error) []string {
	pl.logger.Info("planner: falling back to single step", "reason", reason)
	if pl.onFallback != nil {
		pl.onFallback(reason)
	}
	return []string{request}
}
