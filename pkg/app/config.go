package app

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/majlis/internal/agent"
	ctxengine "github.com/flemzord/majlis/internal/context"
	"github.com/flemzord/majlis/internal/discussion"
	"github.com/flemzord/majlis/internal/knowledge"
	"github.com/flemzord/majlis/internal/memory"
	"github.com/flemzord/majlis/internal/multiagent"
	"github.com/flemzord/majlis/internal/planner"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/router"
	"github.com/flemzord/majlis/internal/sandbox"
)

// agentConfig is the decoded "agent:" section. Every field is optional;
// each package applies its own defaults.
type agentConfig struct {
	agent.Config `yaml:",inline"`

	// Personas replaces the built-in roster when non-empty.
	Personas []multiagent.Persona `yaml:"personas"`

	// Memory caps the in-memory store used when no memory module is
	// configured. The SQLite module carries its own caps.
	Memory memory.Limits `yaml:"memory"`

	Context       ctxengine.Config           `yaml:"context"`
	Summarizer    ctxengine.SummarizerConfig `yaml:"summarizer"`
	Knowledge     knowledge.Config           `yaml:"knowledge"`
	Planner       planner.Config             `yaml:"planner"`
	Collaboration multiagent.Config          `yaml:"collaboration"`
	Sandbox       sandboxSection             `yaml:"sandbox"`
	Discussion    discussion.Config          `yaml:"discussion"`
	Router        router.Config              `yaml:"router"`
	Schedule      scheduleSection            `yaml:"schedule"`

	// Providers lists provider module IDs in failover order. When empty,
	// every loaded provider joins the chain in load order.
	Providers []string `yaml:"providers"`

	// AuditLog is the JSONL file recording sandbox runs and rate-limited
	// messages. Relative paths are resolved against the data directory.
	// Empty disables auditing.
	AuditLog string `yaml:"audit_log"`

	// ProviderHealth tunes the cooldown and probing of chain members.
	ProviderHealth provider.HealthConfig `yaml:"provider_health"`
}

// sandboxSection adds an off switch to the sandbox settings.
type sandboxSection struct {
	Disabled       bool `yaml:"disabled"`
	sandbox.Config `yaml:",inline"`
}

// scheduleSection overrides the cron expressions of the built-in jobs.
type scheduleSection struct {
	Maintenance      string `yaml:"maintenance"`
	DiscussionReaper string `yaml:"discussion_reaper"`
	SessionPrune     string `yaml:"session_prune"`
}

// decodeAgent parses the "agent:" node. A zero node yields the defaults.
func decodeAgent(node *yaml.Node) (agentConfig, error) {
	var cfg agentConfig
	if node != nil && node.Kind != 0 {
		if err := node.Decode(&cfg); err != nil {
			return agentConfig{}, fmt.Errorf("config: agent section: %w", err)
		}
	}
	return cfg, cfg.validate()
}

func (c agentConfig) validate() error {
	var errs []error
	if len(c.Personas) > 0 {
		if err := multiagent.ValidateRoster(c.Personas); err != nil {
			errs = append(errs, err)
		}
	}
	if !c.Sandbox.Disabled {
		if err := c.Sandbox.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.Discussion.Validate(); err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, id := range c.Providers {
		if seen[id] {
			errs = append(errs, fmt.Errorf("config: provider %q listed twice", id))
		}
		seen[id] = true
	}
	return errors.Join(errs...)
}

// roster returns the configured personas or the built-in council.
func (c agentConfig) roster() []multiagent.Persona {
	if len(c.Personas) > 0 {
		return c.Personas
	}
	return multiagent.DefaultRoster()
}
