package gemini

import (
	"errors"
	"os"
	"time"
)

// Config holds the configuration for the Gemini provider.
type Config struct {
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	// MediaModel serves transcription and image description. Defaults to Model.
	MediaModel string        `yaml:"media_model"`
	MaxTokens  int           `yaml:"max_tokens"`
	Timeout    time.Duration `yaml:"timeout"`
	// BaseURL overrides the API endpoint (proxies, tests).
	BaseURL string `yaml:"base_url"`
}

func (c *Config) defaults() {
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "GEMINI_API_KEY"
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
	if c.Model == "" {
		c.Model = "gemini-2.0-flash"
	}
	if c.MediaModel == "" {
		c.MediaModel = c.Model
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("provider.gemini: api_key is required (directly or through api_key_env)"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("provider.gemini: max_tokens must not be negative"))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("provider.gemini: timeout must not be negative"))
	}
	return errors.Join(errs...)
}
