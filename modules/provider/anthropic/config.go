package anthropic

import (
	"errors"
	"os"
	"strings"
	"time"
)

// defaultModel is pinned to a dated release for reproducibility.
const defaultModel = "claude-sonnet-4-5-20250929"

const (
	defaultBaseURL    = "https://api.anthropic.com/v1"
	defaultAPIKeyEnv  = "ANTHROPIC_API_KEY"
	defaultAPIVersion = "2023-06-01"
	defaultMaxTokens  = 1024
	defaultTimeout    = 60 * time.Second
)

// Config holds the YAML-decoded configuration for the Anthropic provider.
type Config struct {
	APIKey     string        `yaml:"api_key"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	APIVersion string        `yaml:"api_version"`
	MaxTokens  int           `yaml:"max_tokens"`
	Timeout    time.Duration `yaml:"timeout"`
}

// defaults fills in zero-value fields. The key from the environment is used
// only when api_key is empty.
func (c *Config) defaults() {
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("provider.anthropic: api_key is required (or set "+c.APIKeyEnv+")"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("provider.anthropic: model must not be empty"))
	}
	return errors.Join(errs...)
}
