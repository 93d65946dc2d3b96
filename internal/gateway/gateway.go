// Package gateway provides the HTTP surface of majlis: health, Prometheus
// metrics, a REST mirror of the orchestrator entry points and a websocket
// feed per conversation. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/majlis/internal/core"
	"github.com/flemzord/majlis/internal/cron"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/router"
	"github.com/flemzord/majlis/internal/telemetry"
)

// Service names resolved at Start.
const (
	ServiceFeed      = "gateway.feed"
	ServiceAgent     = "agent.orchestrator"
	ServiceSessions  = "router.sessions"
	ServiceChain     = "provider.chain"
	ServiceScheduler = "cron.scheduler"
	ServiceMetrics   = "telemetry.metrics"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP gateway module.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	feed      *Feed
	lanes     *router.LaneLock
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	agent     router.Agent
	sessions  *router.SessionStore
	chain     *provider.Chain
	scheduler *cron.Scheduler
	metrics   *telemetry.Metrics
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	return nil
}

// Provision implements core.Provisioner. The feed is registered here so the
// discussion sink can publish to it before Start.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.feed = NewFeed(g.config.FeedBuffer)
	g.lanes = router.NewLaneLock()
	ctx.RegisterService(ServiceFeed, g.feed)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q: %w", g.config.Bind, err)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry and starts the HTTP server.
func (g *Gateway) Start() error {
	if a, ok := core.Service[router.Agent](g.appCtx, ServiceAgent); ok {
		g.agent = a
	}
	if s, ok := core.Service[*router.SessionStore](g.appCtx, ServiceSessions); ok {
		g.sessions = s
	}
	if c, ok := core.Service[*provider.Chain](g.appCtx, ServiceChain); ok {
		g.chain = c
	}
	if s, ok := core.Service[*cron.Scheduler](g.appCtx, ServiceScheduler); ok {
		g.scheduler = s
	}
	if m, ok := core.Service[*telemetry.Metrics](g.appCtx, ServiceMetrics); ok {
		g.metrics = m
	}
	if g.agent == nil {
		g.logger.Warn("gateway: no orchestrator registered, conversation API disabled")
	}

	g.startedAt = time.Now()
	g.server = &http.Server{
		Addr:              g.config.Bind,
		Handler:           g.buildRouter(),
		ReadHeaderTimeout: g.config.ReadHeaderTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		g.logger.Info("gateway: listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway: serve error", "error", err)
		}
	}()
	return nil
}

// Stop implements core.Stopper. Feed subscribers are released first since
// Shutdown does not wait for hijacked connections.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.feed != nil {
		g.feed.Close()
	}
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway: shutting down")
	return g.server.Shutdown(shutdownCtx)
}
