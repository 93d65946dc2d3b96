package openaicompat

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Config holds the YAML-decoded configuration of the provider.
type Config struct {
	BaseURL   string            `yaml:"base_url"`
	APIKey    string            `yaml:"api_key"`
	APIKeyEnv string            `yaml:"api_key_env"`
	Model     string            `yaml:"model"`
	MaxTokens int               `yaml:"max_tokens"`
	Headers   map[string]string `yaml:"headers"`
	Timeout   time.Duration     `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.APIKey == "" && c.APIKeyEnv != "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
}

// validate reports every invalid field at once. An api key is optional
// only for a loopback base_url, such as a local Ollama.
func (c *Config) validate() error {
	var errs []error
	u, err := url.Parse(c.BaseURL)
	switch {
	case c.BaseURL == "":
		errs = append(errs, errors.New("provider.openai_compatible: base_url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("provider.openai_compatible: base_url is not a valid URL: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("provider.openai_compatible: base_url scheme must be http or https, got %q", u.Scheme))
	case c.APIKey == "" && !isLoopback(u.Hostname()):
		errs = append(errs, errors.New("provider.openai_compatible: api_key is required (directly or through api_key_env) for a remote base_url"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("provider.openai_compatible: model is required"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("provider.openai_compatible: max_tokens must not be negative"))
	}
	return errors.Join(errs...)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
