package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/majlis/internal/config"
)

// initAnswers collects the choices made in the init wizard.
type initAnswers struct {
	Path      string
	Providers []string

	OpenAIBaseURL string
	OpenAIModel   string

	Telegram   bool
	AllowChats string

	Search  bool
	Gateway bool
	Bind    string
	SQLite  bool
}

func defaultAnswers() initAnswers {
	return initAnswers{
		Path:          config.ResolvePath(),
		Providers:     []string{"provider.gemini"},
		OpenAIBaseURL: "https://api.openai.com/v1",
		OpenAIModel:   "gpt-4o-mini",
		Telegram:      true,
		Search:        true,
		Bind:          "127.0.0.1:8080",
		SQLite:        true,
	}
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter configuration interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			answers := defaultAnswers()
			if err := runInitForm(&answers); err != nil {
				return err
			}
			raw, err := renderStarterConfig(answers)
			if err != nil {
				return err
			}
			if err := writeStarterConfig(answers.Path, raw, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", answers.Path)
			fmt.Fprintln(cmd.OutOrStdout(), "Set the API key variables (see the *_env keys), then run: majlis start")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}

func runInitForm(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Configuration file").
				Value(&a.Path).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("path is required")
					}
					return nil
				}),
			huh.NewMultiSelect[string]().
				Title("Providers (first selected is primary)").
				Options(
					huh.NewOption("Gemini", "provider.gemini"),
					huh.NewOption("OpenAI-compatible", "provider.openai_compatible"),
					huh.NewOption("Anthropic", "provider.anthropic"),
				).
				Value(&a.Providers).
				Validate(func(v []string) error {
					if len(v) == 0 {
						return errors.New("select at least one provider")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().Title("OpenAI-compatible base URL").Value(&a.OpenAIBaseURL),
			huh.NewInput().Title("OpenAI-compatible model").Value(&a.OpenAIModel),
		).WithHideFunc(func() bool { return !hasProvider(a.Providers, "provider.openai_compatible") }),
		huh.NewGroup(
			huh.NewConfirm().Title("Enable the Telegram bot?").Value(&a.Telegram),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Allowed chat IDs (comma separated, empty allows all)").
				Value(&a.AllowChats),
		).WithHideFunc(func() bool { return !a.Telegram }),
		huh.NewGroup(
			huh.NewConfirm().Title("Enable web search (DuckDuckGo)?").Value(&a.Search),
			huh.NewConfirm().Title("Persist memory in SQLite?").Value(&a.SQLite),
			huh.NewConfirm().Title("Enable the HTTP gateway?").Value(&a.Gateway),
		),
		huh.NewGroup(
			huh.NewInput().Title("Gateway bind address").Value(&a.Bind),
		).WithHideFunc(func() bool { return !a.Gateway }),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("init aborted")
		}
		return fmt.Errorf("init: %w", err)
	}
	return nil
}

func hasProvider(ids []string, id string) bool {
	for _, p := range ids {
		if p == id {
			return true
		}
	}
	return false
}

// starterConfig fixes the key order of the rendered file.
type starterConfig struct {
	Version string                    `yaml:"version"`
	Agent   starterAgent              `yaml:"agent"`
	Modules map[string]map[string]any `yaml:"modules"`
}

type starterAgent struct {
	Providers []string `yaml:"providers"`
}

// renderStarterConfig produces the YAML for a. Secrets are never written;
// every module reads them from the environment.
func renderStarterConfig(a initAnswers) ([]byte, error) {
	if len(a.Providers) == 0 {
		return nil, errors.New("init: no provider selected")
	}
	mods := make(map[string]map[string]any)
	for _, id := range a.Providers {
		switch id {
		case "provider.gemini":
			mods[id] = map[string]any{"api_key_env": "GEMINI_API_KEY"}
		case "provider.openai_compatible":
			mods[id] = map[string]any{
				"base_url":    a.OpenAIBaseURL,
				"api_key_env": "OPENAI_API_KEY",
				"model":       a.OpenAIModel,
			}
		case "provider.anthropic":
			mods[id] = map[string]any{"api_key_env": "ANTHROPIC_API_KEY"}
		default:
			return nil, fmt.Errorf("init: unknown provider %q", id)
		}
	}
	if a.Telegram {
		tg := map[string]any{"token_env": "TELEGRAM_BOT_TOKEN"}
		if chats := splitList(a.AllowChats); len(chats) > 0 {
			tg["allow_chats"] = chats
		}
		mods["channel.telegram"] = tg
	}
	if a.SQLite {
		mods["memory.sqlite"] = map[string]any{}
	}
	if a.Search {
		mods["search.duckduckgo"] = map[string]any{}
	}
	if a.Gateway {
		mods["gateway.http"] = map[string]any{"bind": a.Bind}
	}

	out, err := yaml.Marshal(starterConfig{
		Version: "1",
		Agent:   starterAgent{Providers: a.Providers},
		Modules: mods,
	})
	if err != nil {
		return nil, fmt.Errorf("init: rendering config: %w", err)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// writeStarterConfig writes raw to path with owner-only permissions. An
// existing file is kept unless force is set.
func writeStarterConfig(path string, raw []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("init: %s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("init: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("init: creating directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("init: writing %s: %w", path, err)
	}
	return nil
}
