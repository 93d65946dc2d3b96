package multiagent

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/flemzord/majlis/internal/provider"
)

var (
	// ErrEmptyRoster is returned when there are no personas to deliberate.
	ErrEmptyRoster = errors.New("multiagent: empty roster")

	// ErrNoResult is returned when every call of a round failed.
	ErrNoResult = errors.New("multiagent: no persona produced a result")
)

// Config tunes a deliberation round.
type Config struct {
	OpinionTokens   int           `yaml:"opinion_tokens"`
	SynthesisTokens int           `yaml:"synthesis_tokens"`
	Temperature     float64       `yaml:"temperature"`
	Timeout         time.Duration `yaml:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.OpinionTokens <= 0 {
		c.OpinionTokens = 300
	}
	if c.SynthesisTokens <= 0 {
		c.SynthesisTokens = 900
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.8
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// Opinion is one persona's contribution to a round.
type Opinion struct {
	Persona Persona
	Text    string
}

// Result is the outcome of a round. Synthesized is false when the answer
// fell back to the last opinion.
type Result struct {
	Answer      string
	Opinions    []Opinion
	Synthesized bool
}

// EmitFunc receives each opinion as soon as it is produced.
type EmitFunc func(ctx context.Context, op Opinion)

// Collaborator drives the roster through opinion accumulation and a
// final synthesis by the last persona.
type Collaborator struct {
	provider provider.Provider
	roster   []Persona
	cfg      Config
	logger   *slog.Logger
	onFail   func(stage string, err error)
}

// CollaboratorOption configures a Collaborator.
type CollaboratorOption func(*Collaborator)

// WithFailureHook registers fn, called for every failed opinion or
// synthesis call. stage is "opinion" or "synthesis".
func WithFailureHook(fn func(stage string, err error)) CollaboratorOption {
	return func(c *Collaborator) { c.onFail = fn }
}

// NewCollaborator creates a Collaborator over a copy of roster.
func NewCollaborator(p provider.Provider, roster []Persona, cfg Config, logger *slog.Logger, opts ...CollaboratorOption) *Collaborator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collaborator{
		provider: p,
		roster:   slices.Clone(roster),
		cfg:      cfg.withDefaults(),
		logger:   logger.With("component", "multiagent"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Roster returns a copy of the personas in speaking order.
func (c *Collaborator) Roster() []Persona { return slices.Clone(c.roster) }

// Deliberate runs one round. Every persona but the last speaks in order,
// seeing all prior opinions; each non-empty opinion is passed to emit
// immediately. The last persona then synthesizes the transcript. A failed
// opinion is skipped; a failed synthesis falls back to the last opinion.
func (c *Collaborator) Deliberate(ctx context.Context, contextBlock, question string, emit EmitFunc) (Result, error) {
	if len(c.roster) == 0 {
		return Result{}, ErrEmptyRoster
	}

	var res Result
	speakers, synth := c.roster[:len(c.roster)-1], c.roster[len(c.roster)-1]

	for _, p := range speakers {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		text, err := c.generate(ctx, p, opinionPrompt(contextBlock, question, res.Opinions), c.cfg.OpinionTokens)
		if err != nil {
			c.failed("opinion", p, err)
			continue
		}
		op := Opinion{Persona: p, Text: text}
		res.Opinions = append(res.Opinions, op)
		if emit != nil {
			emit(ctx, op)
		}
	}

	answer, err := c.generate(ctx, synth, synthesisPrompt(contextBlock, question, res.Opinions), c.cfg.SynthesisTokens)
	if err == nil {
		res.Answer = answer
		res.Synthesized = true
		return res, nil
	}
	c.failed("synthesis", synth, err)

	if n := len(res.Opinions); n > 0 {
		res.Answer = res.Opinions[n-1].Text
		return res, nil
	}
	return res, ErrNoResult
}

func (c *Collaborator) generate(ctx context.Context, p Persona, prompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	return provider.Generate(ctx, c.provider, prompt, p.Preamble(), maxTokens, c.cfg.Temperature)
}

func (c *Collaborator) failed(stage string, p Persona, err error) {
	c.logger.Warn("multiagent: call failed", "stage", stage, "persona", p.Name, "error", err)
	if c.onFail != nil {
		c.onFail(stage, err)
	}
}

// Transcript renders opinions as "name: text" lines.
func Transcript(ops []Opinion) string {
	lines := make([]string, len(ops))
	for i, op := range ops {
		lines[i] = op.Persona.Name + ": " + op.Text
	}
	return strings.Join(lines, "\n")
}

func opinionPrompt(contextBlock, question string, prior []Opinion) string {
	parts := promptHead(contextBlock, question)
	if len(prior) > 0 {
		parts = append(parts, "آراء الزملاء حتى الآن:\n"+Transcript(prior))
	}
	parts = append(parts, "اكتب رأيك في جملة إلى ثلاث جمل. يمكنك أن توافق أو تعترض أو تضيف فكرة جديدة.")
	return strings.Join(parts, "\n\n")
}

func synthesisPrompt(contextBlock, question string, ops []Opinion) string {
	parts := promptHead(contextBlock, question)
	if len(ops) > 0 {
		parts = append(parts, "آراء الفريق:\n"+Transcript(ops), "اكتب إجابة نهائية شاملة تجمع أفضل ما في كل رأي.")
	} else {
		parts = append(parts, "اكتب إجابة نهائية شاملة.")
	}
	return strings.Join(parts, "\n\n")
}

func promptHead(contextBlock, question string) []string {
	var parts []string
	if contextBlock != "" {
		parts = append(parts, "السياق:\n"+contextBlock)
	}
	return append(parts, "السؤال أو المهمة:\n"+question)
}
