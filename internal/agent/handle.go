package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/majlis/internal/discussion"
	"github.com/flemzord/majlis/internal/memory"
	"github.com/flemzord/majlis/internal/multiagent"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/sandbox"
	"golang.org/x/sync/errgroup"
)

// HandleText answers a free-text request. While a discussion is active the
// message is routed to the discussion as an interjection. It always
// returns usable text.
func (o *Orchestrator) HandleText(ctx context.Context, req Request) Response {
	start := time.Now()
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Response{Text: o.cfg.Language.Help, Route: RouteDirect}
	}

	if o.deps.Discussions != nil && o.deps.Discussions.Active(req.Conversation) {
		resp := o.interject(ctx, req.Conversation, text)
		o.deps.Observer.ObserveRequest("interjection", time.Since(start))
		return resp
	}

	o.remember(ctx, req.Conversation, memory.RoleUser, text)

	route := o.classifier.Classify(text)
	var resp Response
	switch route {
	case RouteSearch:
		resp = o.answerWithSearch(ctx, req.Conversation, text)
	case RouteCode, RouteShell:
		resp = o.answerWithCode(ctx, req.Conversation, text, route)
	case RouteComplex:
		resp = o.answerWithPlan(ctx, req)
	default:
		resp = o.answerDirect(ctx, req.Conversation, text)
	}
	resp.Route = route

	if resp.Text == "" {
		resp.Text = o.cfg.Language.TechnicalDifficulty
	} else {
		role := resp.Persona
		if role == "" {
			role = memory.RoleAssistant
		}
		o.remember(ctx, req.Conversation, role, resp.Text)
	}

	o.logger.Info("agent: request handled",
		"conversation", req.Conversation,
		"route", route,
		"steps", resp.Steps,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	o.deps.Observer.ObserveRequest(string(route), time.Since(start))
	return resp
}

func (o *Orchestrator) interject(ctx context.Context, conversation, text string) Response {
	o.remember(ctx, conversation, memory.RoleUser, text)

	reply, err := o.deps.Discussions.Interject(ctx, conversation, text)
	if err != nil {
		o.logger.Warn("agent: interjection failed", "conversation", conversation, "error", err)
		if errors.Is(err, discussion.ErrNotActive) {
			// The discussion ended between the check and the call.
			return o.answerDirect(ctx, conversation, text)
		}
		return Response{Text: o.cfg.Language.TechnicalDifficulty, Route: RouteDirect}
	}

	o.remember(ctx, conversation, reply.Persona.Name, reply.Text)
	return Response{Text: FormatPersona(reply.Persona, reply.Text), Route: RouteDirect, Persona: reply.Persona.Name}
}

// gather builds the context block and, when query is non-empty, runs the
// search concurrently.
func (o *Orchestrator) gather(ctx context.Context, conversation, text string, search bool) (string, []provider.SearchResult) {
	var (
		contextBlock string
		results      []provider.SearchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		contextBlock = o.deps.Builder.Build(gctx, conversation, text)
		return nil
	})
	if search && o.deps.Searcher != nil {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, o.cfg.Timeouts.Search)
			defer cancel()
			r, err := o.deps.Searcher.Search(sctx, text, o.cfg.SearchResults)
			if err != nil {
				o.logger.Warn("agent: search failed", "conversation", conversation, "error", err)
				return nil
			}
			results = r
			return nil
		})
	}
	_ = g.Wait()
	return contextBlock, results
}

func (o *Orchestrator) answerDirect(ctx context.Context, conversation, text string) Response {
	contextBlock, _ := o.gather(ctx, conversation, text, false)
	p := o.personaFor(RouteDirect)

	answer, err := o.generate(ctx, p, directPrompt(contextBlock, text))
	if err != nil {
		o.logger.Warn("agent: direct generation failed", "conversation", conversation, "error", err)
		return Response{}
	}
	return Response{Text: answer, Persona: p.Name}
}

func (o *Orchestrator) answerWithSearch(ctx context.Context, conversation, text string) Response {
	contextBlock, results := o.gather(ctx, conversation, text, true)
	if len(results) == 0 {
		return o.answerDirect(ctx, conversation, text)
	}

	p := o.personaFor(RouteSearch)
	answer, err := o.generate(ctx, p, searchPrompt(contextBlock, text, results))
	if err != nil {
		o.logger.Warn("agent: search synthesis failed", "conversation", conversation, "error", err)
		return Response{Text: FormatResults(results), Persona: p.Name}
	}
	return Response{Text: answer, Persona: p.Name}
}

func (o *Orchestrator) answerWithCode(ctx context.Context, conversation, text string, route Route) Response {
	contextBlock, _ := o.gather(ctx, conversation, text, false)
	p := o.personaFor(route)

	kind := sandbox.KindCode
	if route == RouteShell {
		kind = sandbox.KindShell
	}
	reply, err := o.generate(ctx, p, codePrompt(contextBlock, text, kind))
	if err != nil {
		o.logger.Warn("agent: code generation failed", "conversation", conversation, "error", err)
		return Response{}
	}

	out := o.execute(ctx, conversation, text, reply, kind)
	return Response{Text: out, Persona: p.Name, Steps: 1}
}

// execute runs the first code block of reply and records a lesson. A
// reply without code is returned with an explanation instead.
func (o *Orchestrator) execute(ctx context.Context, conversation, task, reply string, kind sandbox.Kind) string {
	if o.deps.Sandbox == nil {
		return reply
	}
	src, ok := sandbox.ExtractCode(reply, kind)
	if !ok {
		return reply + "\n\n" + o.cfg.Language.NoCode
	}

	res := o.deps.Sandbox.Run(ctx, kind, src)
	o.deps.Observer.ObserveSandbox(string(res.Outcome), res.Duration)
	o.learn(ctx, conversation, fmt.Sprintf("تنفيذ %s لمهمة «%s»: %s", kind, truncate(task, 120), res.Outcome), res.Succeeded())
	return reply + "\n\n" + res.String()
}

func (o *Orchestrator) answerWithPlan(ctx context.Context, req Request) Response {
	contextBlock, _ := o.gather(ctx, req.Conversation, req.Text, false)

	steps := o.deps.Planner.Plan(ctx, req.Text, contextBlock)
	if len(steps) > 1 && req.Progress != nil {
		req.Progress(ctx, FormatPlan(o.cfg.Language.PlanHeader, steps))
	}

	var results []stepResult
	for i, step := range steps {
		if ctx.Err() != nil {
			break
		}
		results = append(results, o.runStep(ctx, req.Conversation, req.Text, contextBlock, step, i, len(steps), results))
	}

	emit := func(ctx context.Context, op multiagent.Opinion) {
		if req.Progress != nil {
			req.Progress(ctx, FormatPersona(op.Persona, op.Text))
		}
	}
	res, err := o.deps.Collaborator.Deliberate(ctx, withStepResults(contextBlock, results), req.Text, emit)
	if err != nil {
		o.logger.Warn("agent: deliberation failed", "conversation", req.Conversation, "error", err)
		return Response{Text: lastStepOutput(results), Steps: len(steps)}
	}
	synth := o.roster[len(o.roster)-1]
	return Response{Text: res.Answer, Persona: synth.Name, Steps: len(steps)}
}

type stepResult struct {
	Step   string
	Output string
	OK     bool
}

// runStep executes one plan step with a rotating persona. Steps that ask
// for code are executed in the sandbox.
func (o *Orchestrator) runStep(ctx context.Context, conversation, request, contextBlock, step string, i, n int, prior []stepResult) stepResult {
	p := o.roster[i%len(o.roster)]
	route := o.classifier.Classify(step)

	var kind sandbox.Kind
	switch route {
	case RouteCode:
		kind = sandbox.KindCode
	case RouteShell:
		kind = sandbox.KindShell
	}

	out, err := o.generate(ctx, p, stepPrompt(contextBlock, request, step, i, n, prior, kind))
	if err != nil {
		o.logger.Warn("agent: step failed", "conversation", conversation, "step", i+1, "error", err)
		o.learn(ctx, conversation, fmt.Sprintf("الخطوة «%s» فشلت", truncate(step, 120)), false)
		return stepResult{Step: step}
	}
	if kind != "" {
		out = o.execute(ctx, conversation, step, out, kind)
	} else {
		o.learn(ctx, conversation, fmt.Sprintf("الخطوة «%s» أُنجزت", truncate(step, 120)), true)
	}
	return stepResult{Step: step, Output: out, OK: true}
}

func lastStepOutput(results []stepResult) string {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].OK {
			return results[i].Output
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
