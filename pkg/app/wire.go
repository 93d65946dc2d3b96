package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/flemzord/majlis/internal/agent"
	"github.com/flemzord/majlis/internal/channel"
	ctxengine "github.com/flemzord/majlis/internal/context"
	"github.com/flemzord/majlis/internal/core"
	"github.com/flemzord/majlis/internal/cron"
	"github.com/flemzord/majlis/internal/discussion"
	"github.com/flemzord/majlis/internal/gateway"
	"github.com/flemzord/majlis/internal/knowledge"
	"github.com/flemzord/majlis/internal/memory"
	"github.com/flemzord/majlis/internal/multiagent"
	"github.com/flemzord/majlis/internal/planner"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/reload"
	"github.com/flemzord/majlis/internal/router"
	"github.com/flemzord/majlis/internal/sandbox"
	"github.com/flemzord/majlis/internal/security"
	"github.com/flemzord/majlis/internal/telemetry"
)

// wired holds what the wiring produced for the caller.
type wired struct {
	orchestrator *agent.Orchestrator
	sandbox      *sandbox.Runner
}

// wire builds the orchestrator core on top of the loaded modules, connects
// every channel to a router, and appends lifecycle adapters for the chain,
// the router, the discussions and the scheduler. Must be called after
// LoadModules and before Start.
func wire(
	app *core.App,
	ids []string,
	cfg agentConfig,
	tel *telemetry.Telemetry,
	redactor *security.Redactor,
	logger *slog.Logger,
) (*wired, error) {
	appCtx := app.Context()
	metrics := tel.Metrics
	if metrics != nil {
		appCtx.RegisterService(gateway.ServiceMetrics, metrics)
	}

	chain, err := buildChain(app, ids, cfg, tel, logger)
	if err != nil {
		return nil, err
	}
	appCtx.RegisterService(gateway.ServiceChain, chain)
	app.AppendModule(&chainModule{chain: chain})

	audit, err := openAudit(app, cfg.AuditLog, redactor)
	if err != nil {
		return nil, err
	}

	searcher, transcriber, describer := discoverMedia(app, ids, logger)

	store, err := resolveStore(appCtx, cfg, logger)
	if err != nil {
		return nil, err
	}
	store = memory.WithRetry(store, logger, memory.WithFailureFunc(metrics.MemoryFailure))

	indexer := knowledge.NewIndexer(store, cfg.Knowledge, logger)
	builder := ctxengine.NewBuilder(store, indexer, cfg.Context, logger)
	summarizer := ctxengine.NewSummarizer(store, chain, cfg.Summarizer, logger,
		ctxengine.WithSummaryFailureHook(metrics.SummaryFailure))
	// Appended after the store modules, so in-flight summaries are written
	// before the store closes.
	app.AppendModule(&summarizerModule{summarizer: summarizer})
	plan := planner.New(chain, cfg.Planner, logger,
		planner.WithFallbackHook(metrics.PlannerFallback))

	roster := cfg.roster()
	collaborator := multiagent.NewCollaborator(chain, roster, cfg.Collaboration, logger,
		multiagent.WithFailureHook(metrics.CollaborationFailure))

	var runner *sandbox.Runner
	if !cfg.Sandbox.Disabled {
		runner = sandbox.New(cfg.Sandbox.Config, logger,
			sandbox.WithSecrets(redactor.Literals()...),
			sandbox.WithAudit(audit))
		if err := runner.Check(); err != nil {
			logger.Warn("sandbox: interpreter check failed, code requests will fail", "error", err)
		}
	}

	sink := &discussionSink{metrics: metrics, logger: logger.With("component", "discussion")}
	if feed, ok := core.Service[*gateway.Feed](appCtx, gateway.ServiceFeed); ok {
		sink.feed = feed
	}
	discOpts := []discussion.Option{discussion.WithFailureHook(metrics.DiscussionFailure)}
	if searcher != nil {
		discOpts = append(discOpts, discussion.WithSearcher(searcher))
	}
	discussions := discussion.NewManager(chain, roster, cfg.Discussion, sink.emit, logger, discOpts...)

	deps := agent.Deps{
		Provider:     chain,
		Store:        store,
		Builder:      builder,
		Summarizer:   summarizer,
		Indexer:      indexer,
		Planner:      plan,
		Collaborator: collaborator,
		Sandbox:      runner,
		Discussions:  discussions,
		Searcher:     searcher,
		Transcriber:  transcriber,
		Describer:    describer,
		Observer:     metrics,
	}
	orch, err := agent.New(deps, cfg.Config, logger)
	if err != nil {
		return nil, err
	}
	sink.format = orch.FormatEvent
	appCtx.RegisterService(gateway.ServiceAgent, router.Agent(orch))

	r, err := wireRouter(app, ids, cfg, orch, metrics, audit, logger)
	if err != nil {
		return nil, err
	}
	if r != nil {
		sink.deliver = r.Deliver
	}
	app.AppendModule(&discussionModule{manager: discussions})

	if err := wireScheduler(app, cfg, discussions, r, metrics, logger); err != nil {
		return nil, err
	}

	return &wired{orchestrator: orch, sandbox: runner}, nil
}

// openAudit opens the audit file in append mode and appends an adapter
// closing it on shutdown. An empty path returns a nil logger.
func openAudit(app *core.App, path string, redactor *security.Redactor) (*security.AuditLogger, error) {
	if path == "" {
		return nil, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(app.Context().DataDir, path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	app.AppendModule(&auditModule{file: f})
	return security.NewAuditLogger(security.AuditLoggerConfig{Writer: f, Redactor: redactor}), nil
}

// buildChain wraps every provider module in instrumentation and orders them
// for failover.
func buildChain(app *core.App, ids []string, cfg agentConfig, tel *telemetry.Telemetry, logger *slog.Logger) (*provider.Chain, error) {
	order := cfg.Providers
	if len(order) == 0 {
		for _, id := range ids {
			mod, ok := app.Module(core.ModuleID(id))
			if !ok {
				continue
			}
			if _, ok := mod.(provider.Provider); ok {
				order = append(order, id)
			}
		}
	}

	entries := make([]provider.ChainEntry, 0, len(order))
	for _, id := range order {
		mod, ok := app.Module(core.ModuleID(id))
		if !ok {
			return nil, fmt.Errorf("provider chain: module %q is not loaded", id)
		}
		p, ok := mod.(provider.Provider)
		if !ok {
			return nil, fmt.Errorf("provider chain: module %q is not a provider", id)
		}
		entries = append(entries, provider.ChainEntry{
			Name:     id,
			Provider: provider.Instrument(p, id, tel.Tracer(), tel.Metrics),
			Health:   cfg.ProviderHealth,
		})
		logger.Info("provider chain: added", "provider", id, "model", p.ModelName())
	}
	return provider.NewChain(entries, provider.WithLogger(logger.With("component", "provider")))
}

// discoverMedia returns the first loaded search, transcription and image
// description capabilities. Any of them may be nil.
func discoverMedia(app *core.App, ids []string, logger *slog.Logger) (provider.Searcher, provider.Transcriber, provider.Describer) {
	var (
		searcher    provider.Searcher
		transcriber provider.Transcriber
		describer   provider.Describer
	)
	for _, id := range ids {
		mod, ok := app.Module(core.ModuleID(id))
		if !ok {
			continue
		}
		if s, ok := mod.(provider.Searcher); ok && searcher == nil {
			searcher = s
			logger.Info("wiring: search enabled", "module", id)
		}
		if t, ok := mod.(provider.Transcriber); ok && transcriber == nil {
			transcriber = t
			logger.Info("wiring: voice transcription enabled", "module", id)
		}
		if d, ok := mod.(provider.Describer); ok && describer == nil {
			describer = d
			logger.Info("wiring: image description enabled", "module", id)
		}
	}
	return searcher, transcriber, describer
}

// resolveStore returns the store registered by a memory module, or a
// process-local store when none is configured.
func resolveStore(appCtx *core.AppContext, cfg agentConfig, logger *slog.Logger) (memory.Store, error) {
	if svc, ok := appCtx.GetService(memory.ServiceStore); ok {
		store, ok := svc.(memory.Store)
		if !ok {
			return nil, fmt.Errorf("service %s: unexpected type %T", memory.ServiceStore, svc)
		}
		return store, nil
	}
	logger.Warn("wiring: no memory module configured, memory is lost on restart")
	return memory.NewInMemoryStore(cfg.Memory), nil
}

// wireRouter registers every loaded channel with a dispatcher, points their
// inboxes at a new router and appends the router to the lifecycle. It
// returns nil when no channel is loaded.
func wireRouter(
	app *core.App,
	ids []string,
	cfg agentConfig,
	orch *agent.Orchestrator,
	metrics *telemetry.Metrics,
	audit *security.AuditLogger,
	logger *slog.Logger,
) (*router.Router, error) {
	dispatcher := channel.NewDispatcher(channel.WithDeliveryHook(metrics.Delivery))
	var channels []channel.Channel
	for _, id := range ids {
		mod, ok := app.Module(core.ModuleID(id))
		if !ok {
			continue
		}
		ch, ok := mod.(channel.Channel)
		if !ok {
			continue
		}
		if err := dispatcher.Register(ch); err != nil {
			return nil, fmt.Errorf("registering channel %s: %w", id, err)
		}
		channels = append(channels, ch)
		logger.Info("router: registered channel", "channel", id)
	}
	if len(channels) == 0 {
		logger.Info("router: no channels found, skipping router wiring")
		return nil, nil
	}

	rcfg := cfg.Router
	rcfg.Handler = router.NewAgentHandler(orch, logger)
	rcfg.ResponseSender = dispatcher
	rcfg.Channels = dispatcher
	rcfg.OnDrop = metrics.RouterDrop
	rcfg.Audit = audit
	rcfg.Logger = logger
	r, err := router.NewRouter(rcfg)
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}

	for _, ch := range channels {
		ch.SetInbox(r.Submit)
	}
	app.AppendModule(&routerModule{router: r})
	app.Context().RegisterService(gateway.ServiceSessions, r.Sessions())

	logger.Info("router: wired", "channels", len(channels))
	return r, nil
}

// wireScheduler registers the maintenance jobs and appends the scheduler
// to the lifecycle.
func wireScheduler(
	app *core.App,
	cfg agentConfig,
	discussions *discussion.Manager,
	r *router.Router,
	metrics *telemetry.Metrics,
	logger *slog.Logger,
) error {
	appCtx := app.Context()
	sched := cron.NewScheduler(logger, cron.WithResultHook(metrics.JobResult))

	var jobs []cron.Job
	if m, ok := core.Service[cron.Maintainer](appCtx, memory.ServiceMaintainer); ok {
		jobs = append(jobs, &cron.MaintenanceJob{Store: m, ScheduleExpr: cfg.Schedule.Maintenance})
	}
	jobs = append(jobs, &cron.DiscussionReaperJob{
		Reaper:       discussions,
		Logger:       logger,
		ScheduleExpr: cfg.Schedule.DiscussionReaper,
	})
	if r != nil {
		jobs = append(jobs, &cron.SessionPruneJob{
			Sessions:     r,
			Logger:       logger,
			ScheduleExpr: cfg.Schedule.SessionPrune,
		})
	}

	var errs []error
	for _, j := range jobs {
		if err := sched.RegisterJob(j); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	appCtx.RegisterService(gateway.ServiceScheduler, sched)
	app.AppendModule(&schedulerModule{scheduler: sched})
	return nil
}

// discussionSink renders discussion events and fans them out to the
// conversation's channel and to the gateway feed. Its fields are set during
// wiring, before any discussion can start.
type discussionSink struct {
	format  func(discussion.Event) string
	deliver func(ctx context.Context, conversation, text string) error
	feed    *gateway.Feed
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func (s *discussionSink) emit(ctx context.Context, ev discussion.Event) {
	if ev.Kind == discussion.EventUtterance || ev.Kind == discussion.EventOpener {
		s.metrics.DiscussionUtterance()
	}
	if s.feed != nil {
		s.feed.Publish(gateway.FeedEvent{
			Conversation: ev.Conversation,
			Kind:         string(ev.Kind),
			Speaker:      ev.Persona.Name,
			Text:         ev.Text,
		})
	}
	if s.deliver == nil || s.format == nil {
		return
	}
	err := s.deliver(ctx, ev.Conversation, s.format(ev))
	switch {
	case err == nil:
	case errors.Is(err, router.ErrBadConversation):
		// Gateway conversations have no channel to deliver to.
		s.logger.Debug("discussion: delivery skipped", "conversation", ev.Conversation, "error", err)
	default:
		s.logger.Warn("discussion: delivery failed", "conversation", ev.Conversation, "error", err)
	}
}

// telemetryModule flushes spans at shutdown.
type telemetryModule struct {
	telemetry *telemetry.Telemetry
}

func (m *telemetryModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "telemetry"}
}

func (m *telemetryModule) Start() error { return nil }

func (m *telemetryModule) Stop(ctx context.Context) error {
	return m.telemetry.Shutdown(ctx)
}

// reloadModule applies config file changes while the app runs.
type reloadModule struct {
	watcher *reload.Watcher
	handler *reload.Handler
	cancel  context.CancelFunc
	done    chan struct{}
}

func (m *reloadModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "reload"}
}

func (m *reloadModule) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	if err := m.watcher.Start(ctx); err != nil {
		cancel()
		return err
	}
	m.cancel = cancel
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		reload.Run(ctx, m.watcher, m.handler)
	}()
	return nil
}

func (m *reloadModule) Stop(context.Context) error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	m.watcher.Stop()
	return nil
}

// summarizerModule drains background summaries at shutdown.
type summarizerModule struct {
	summarizer *ctxengine.Summarizer
}

func (m *summarizerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "summarizer"}
}

func (m *summarizerModule) Start() error { return nil }

func (m *summarizerModule) Stop(ctx context.Context) error {
	if err := m.summarizer.Wait(ctx); err != nil {
		return fmt.Errorf("summarizer: draining: %w", err)
	}
	return nil
}

// auditModule closes the audit log file at shutdown.
type auditModule struct {
	file *os.File
}

func (m *auditModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "audit"}
}

func (m *auditModule) Start() error { return nil }

func (m *auditModule) Stop(context.Context) error {
	return m.file.Close()
}

// chainModule runs the provider health checks.
type chainModule struct {
	chain *provider.Chain
}

func (m *chainModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "provider.chain"}
}

func (m *chainModule) Start() error {
	m.chain.Start(context.Background())
	return nil
}

func (m *chainModule) Stop(context.Context) error {
	m.chain.Stop()
	return nil
}

// routerModule wraps a *router.Router to satisfy core.Module, core.Starter,
// and core.Stopper, so the router participates in the App lifecycle.
type routerModule struct {
	router *router.Router
}

func (m *routerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "router"}
}

func (m *routerModule) Start() error {
	m.router.Start(context.Background())
	return nil
}

func (m *routerModule) Stop(ctx context.Context) error {
	m.router.Stop(ctx)
	return nil
}

// discussionModule stops every running discussion at shutdown. It is
// appended after the router so loops end before delivery stops.
type discussionModule struct {
	manager *discussion.Manager
}

func (m *discussionModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "discussion"}
}

func (m *discussionModule) Start() error { return nil }

func (m *discussionModule) Stop(ctx context.Context) error {
	return m.manager.StopAll(ctx)
}

type schedulerModule struct {
	scheduler *cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron"}
}

func (m *schedulerModule) Start() error { return m.scheduler.Start() }

func (m *schedulerModule) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}
