package duckduckgo

import (
	"errors"
	"net/url"
	"time"
)

const (
	defaultEndpoint   = "https://html.duckduckgo.com/html/"
	defaultUserAgent  = "Mozilla/5.0 (compatible; majlis/1.0)"
	defaultMaxResults = 5
	maxAllowedResults = 10
)

// Config holds the configuration for the DuckDuckGo search module.
type Config struct {
	Endpoint   string        `yaml:"endpoint"`
	Region     string        `yaml:"region"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryWait  time.Duration `yaml:"retry_wait"`
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.RetryWait == 0 {
		c.RetryWait = time.Second
	}
}

func (c *Config) validate() error {
	var errs []error
	if u, err := url.Parse(c.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, errors.New("search.duckduckgo: endpoint must be an http(s) URL"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("search.duckduckgo: max_retries must not be negative"))
	}
	return errors.Join(errs...)
}
