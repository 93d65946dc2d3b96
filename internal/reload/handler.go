package reload

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/flemzord/majlis/internal/config"
	"github.com/flemzord/majlis/internal/security"
)

// Handler re-reads the configuration file and applies the settings that
// can change at runtime. Only the log level is applied live; a changed
// module set is reported as needing a restart.
type Handler struct {
	level   *slog.LevelVar
	pinned  bool
	modules []string
	logger  *slog.Logger
}

// NewHandler creates a reload handler. level is the process log level.
// pinned is set when the level came from the command line and must not be
// overridden. modules is the configured module set at startup.
func NewHandler(level *slog.LevelVar, pinned bool, modules []string, logger *slog.Logger) *Handler {
	mods := slices.Clone(modules)
	slices.Sort(mods)
	return &Handler{
		level:   level,
		pinned:  pinned,
		modules: mods,
		logger:  logger.With("component", "reload"),
	}
}

// HandleReload loads and validates the file at configPath, then applies it.
// An invalid file leaves the running settings untouched.
func (h *Handler) HandleReload(ctx context.Context, configPath string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	h.Apply(cfg)
	return nil
}

// Apply applies a validated configuration.
func (h *Handler) Apply(cfg *config.Config) {
	if !h.pinned && cfg.LogLevel != "" {
		next := security.ParseLevel(cfg.LogLevel)
		if prev := h.level.Level(); prev != next {
			h.level.Set(next)
			h.logger.Info("reload: log level changed", "from", prev, "to", next)
		}
	}

	mods := slices.Sorted(maps.Keys(cfg.Modules))
	if !slices.Equal(mods, h.modules) {
		h.logger.Warn("reload: module set changed, restart required", "configured", mods, "running", h.modules)
	}
	h.logger.Info("reload: configuration applied")
}

// Run applies every event of w through h until ctx is done. Errors are
// logged and the previous settings stay in place.
func Run(ctx context.Context, w *Watcher, h *Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.Events():
			if err := h.HandleReload(ctx, ev.ConfigPath); err != nil {
				h.logger.Warn("reload: configuration rejected", "path", ev.ConfigPath, "error", err)
			}
		}
	}
}
