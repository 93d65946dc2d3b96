// Package agent implements the orchestrator: the entry points that turn
// chat events into persisted, context-aware, persona-generated answers.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	ctxengine "github.com/flemzord/majlis/internal/context"
	"github.com/flemzord/majlis/internal/discussion"
	"github.com/flemzord/majlis/internal/knowledge"
	"github.com/flemzord/majlis/internal/memory"
	"github.com/flemzord/majlis/internal/multiagent"
	"github.com/flemzord/majlis/internal/planner"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/sandbox"
)

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("agent: missing dependency")

// Deps are the orchestrator's collaborators. Searcher, Transcriber,
// Describer, Sandbox and Discussions are optional.
type Deps struct {
	Provider     provider.Provider
	Store        memory.Store
	Builder      *ctxengine.Builder
	Summarizer   *ctxengine.Summarizer
	Indexer      *knowledge.Indexer
	Planner      *planner.Planner
	Collaborator *multiagent.Collaborator
	Sandbox      *sandbox.Runner
	Discussions  *discussion.Manager
	Searcher     provider.Searcher
	Transcriber  provider.Transcriber
	Describer    provider.Describer
	Observer     Observer
}

// Observer receives orchestrator measurements.
type Observer interface {
	ObserveRequest(route string, elapsed time.Duration)
	ObserveSandbox(outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, time.Duration) {}
func (nopObserver) ObserveSandbox(string, time.Duration) {}

// ProgressFunc receives intermediate messages (the plan, each opinion)
// while a request is processed.
type ProgressFunc func(ctx context.Context, text string)

// Request is one text request.
type Request struct {
	Conversation string
	Text         string
	Progress     ProgressFunc
}

// Response is the final answer of a request.
type Response struct {
	Text  string
	Route Route
	Steps int

	// Persona is the display name of the answering persona, if any.
	Persona string
}

// Orchestrator wires the core subsystems behind the transport entry points.
type Orchestrator struct {
	deps       Deps
	roster     []multiagent.Persona
	cfg        Config
	classifier *Classifier
	logger     *slog.Logger
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	var missing []error
	if deps.Provider == nil {
		missing = append(missing, fmt.Errorf("%w: provider", ErrMissingDependency))
	}
	if deps.Store == nil {
		missing = append(missing, fmt.Errorf("%w: store", ErrMissingDependency))
	}
	if deps.Builder == nil {
		missing = append(missing, fmt.Errorf("%w: context builder", ErrMissingDependency))
	}
	if deps.Indexer == nil {
		missing = append(missing, fmt.Errorf("%w: knowledge indexer", ErrMissingDependency))
	}
	if deps.Planner == nil {
		missing = append(missing, fmt.Errorf("%w: planner", ErrMissingDependency))
	}
	if deps.Collaborator == nil {
		missing = append(missing, fmt.Errorf("%w: collaborator", ErrMissingDependency))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	roster := deps.Collaborator.Roster()
	if len(roster) == 0 {
		return nil, multiagent.ErrEmptyRoster
	}

	cfg = cfg.withDefaults()
	return &Orchestrator{
		deps:       deps,
		roster:     roster,
		cfg:        cfg,
		classifier: NewClassifier(cfg.Classifier),
		logger:     logger.With("component", "agent"),
	}, nil
}

// Language returns the effective user-facing texts.
func (o *Orchestrator) Language() Language { return o.cfg.Language }

// Classify exposes the routing decision for req.
func (o *Orchestrator) Classify(text string) Route { return o.classifier.Classify(text) }

func (o *Orchestrator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.cfg.Timeouts.Store)
}

// remember appends a message and feeds the summarizer. Failures are
// logged by the store wrapper and never reach the caller.
func (o *Orchestrator) remember(ctx context.Context, conversation, role, content string) {
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()

	seq, err := o.deps.Store.AppendMessage(sctx, conversation, memory.Message{Role: role, Content: content, CreatedAt: time.Now()})
	if err != nil {
		o.logger.Warn("agent: message not persisted", "conversation", conversation, "role", role, "error", err)
		return
	}
	if o.deps.Summarizer != nil {
		o.deps.Summarizer.Observe(conversation, seq)
	}
}

func (o *Orchestrator) learn(ctx context.Context, conversation, text string, ok bool) {
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()

	outcome := memory.OutcomeSuccess
	if !ok {
		outcome = memory.OutcomeFailure
	}
	if err := o.deps.Store.AppendLesson(sctx, conversation, memory.Lesson{Text: text, Outcome: outcome, CreatedAt: time.Now()}); err != nil {
		o.logger.Warn("agent: lesson not persisted", "conversation", conversation, "error", err)
	}
}

func (o *Orchestrator) generate(ctx context.Context, p multiagent.Persona, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Generate)
	defer cancel()
	return provider.Generate(ctx, o.deps.Provider, prompt, p.Preamble(), o.cfg.ReplyTokens, o.cfg.Temperature)
}

// personaFor returns the persona configured for route.
func (o *Orchestrator) personaFor(route Route) multiagent.Persona {
	if name, ok := o.cfg.RoutePersonas[route]; ok {
		for _, p := range o.roster {
			if p.Name == name {
				return p
			}
		}
	}
	return o.roster[0]
}
