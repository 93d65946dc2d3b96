// Package app provides the shared entry point of the majlis binary: it
// loads the configuration, provisions the modules, wires the orchestrator
// core between them and runs the lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/flemzord/majlis/internal/agent"
	"github.com/flemzord/majlis/internal/config"
	"github.com/flemzord/majlis/internal/core"
	"github.com/flemzord/majlis/internal/reload"
	"github.com/flemzord/majlis/internal/sandbox"
	"github.com/flemzord/majlis/internal/security"
	"github.com/flemzord/majlis/internal/telemetry"
)

// ServiceConfigPath is the service name of the resolved config file path.
const ServiceConfigPath = "config.path"

// RunParams configures the application.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, config.ResolvePath is called.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides data_dir from the configuration.
	DataDir string

	// LogLevel is "debug", "info", "warn" or "error". It overrides
	// log_level from the configuration and pins it against reloads.
	LogLevel string

	// LogOutput receives the logs. Defaults to os.Stderr.
	LogOutput io.Writer

	// Headless skips channel and gateway modules, for embedding the core
	// behind another transport (the MCP server).
	Headless bool
}

// Runtime is a provisioned and wired application that has not started yet.
type Runtime struct {
	App          *core.App
	Orchestrator *agent.Orchestrator

	// Sandbox is nil when disabled in the configuration.
	Sandbox *sandbox.Runner

	Logger    *slog.Logger
	ModuleIDs []string
}

// Run builds the application, starts all modules, and blocks until a
// shutdown signal is received.
func Run(params RunParams) error {
	rt, err := Build(params)
	if err != nil {
		return err
	}
	return rt.App.Run(context.Background())
}

// Build loads and validates the configuration, provisions every configured
// module and wires the orchestrator core. Call Close on the returned
// Runtime's App when it is not run.
func Build(params RunParams) (*Runtime, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		cfgPath = config.ResolvePath()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	agentCfg, err := decodeAgent(&cfg.Agent)
	if err != nil {
		return nil, err
	}
	telCfg, err := telemetry.Decode(&cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	redactor := security.NewRedactor()
	logLevel := params.LogLevel
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	level := new(slog.LevelVar)
	level.Set(security.ParseLevel(logLevel))
	logger := security.NewLogger(out, level, redactor)

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.ServiceRedactor, redactor)
	appCtx.RegisterService(ServiceConfigPath, cfgPath)

	tel, err := telemetry.New(context.Background(), telCfg, params.Version, logger)
	if err != nil {
		return nil, err
	}

	application := core.NewApp(appCtx)
	// First in, last out: spans are flushed after every module stopped.
	application.AppendModule(&telemetryModule{telemetry: tel})

	ids := config.Resolve(cfg)
	if params.Headless {
		ids = slices.DeleteFunc(ids, isTransport)
	}
	if err := application.LoadModules(ids); err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, err
	}

	w, err := wire(application, ids, agentCfg, tel, redactor, logger)
	if err != nil {
		application.Close()
		return nil, err
	}

	handler := reload.NewHandler(level, params.LogLevel != "", slices.Collect(maps.Keys(cfg.Modules)), logger)
	application.AppendModule(&reloadModule{
		watcher: reload.NewWatcher(reload.WatcherConfig{ConfigPath: cfgPath}),
		handler: handler,
	})

	logger.Info("majlis: ready",
		"version", params.Version,
		"commit", params.Commit,
		"config", cfgPath,
		"data_dir", dataDir,
		"modules", len(ids),
	)
	return &Runtime{
		App:          application,
		Orchestrator: w.orchestrator,
		Sandbox:      w.sandbox,
		Logger:       logger,
		ModuleIDs:    ids,
	}, nil
}

func isTransport(id string) bool {
	switch core.ModuleID(id).Namespace() {
	case "channel", "gateway":
		return true
	}
	return false
}
