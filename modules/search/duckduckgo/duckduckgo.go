// Package duckduckgo provides a web search module backed by the DuckDuckGo
// HTML endpoint. It needs no API key.
package duckduckgo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/majlis/internal/core"
	"github.com/flemzord/majlis/internal/provider"
)

func init() {
	core.RegisterModule(&Search{})
}

// ErrEmptyQuery is returned when Search is called with a blank query.
var ErrEmptyQuery = errors.New("search.duckduckgo: empty query")

// Search implements provider.Searcher against DuckDuckGo.
type Search struct {
	config Config
	client *resty.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (s *Search) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "search.duckduckgo",
		New: func() core.Module { return &Search{} },
	}
}

// Configure implements core.Configurable.
func (s *Search) Configure(node *yaml.Node) error {
	return node.Decode(&s.config)
}

// Provision implements core.Provisioner.
func (s *Search) Provision(ctx *core.AppContext) error {
	s.config.defaults()
	s.logger = ctx.Logger
	s.client = newClient(s.config)
	return nil
}

// Validate implements core.Validator.
func (s *Search) Validate() error {
	return s.config.validate()
}

func newClient(cfg Config) *resty.Client {
	return resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWait).
		SetHeader("User-Agent", cfg.UserAgent).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				var netErr net.Error
				return errors.As(err, &netErr) && netErr.Timeout()
			}
			code := r.StatusCode()
			return code == http.StatusTooManyRequests || code >= 500
		})
}

// Search implements provider.Searcher. max is clamped to [1, 10] with 5 as
// the default for non-positive values.
func (s *Search) Search(ctx context.Context, query string, max int) ([]provider.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	form := map[string]string{"q": query}
	if s.config.Region != "" {
		form["kl"] = s.config.Region
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post(s.config.Endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("search.duckduckgo: request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("search.duckduckgo: unexpected status %d", resp.StatusCode())
	}

	results, err := parseResults(resp.String(), resolveMax(max))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("duckduckgo: search done", "results", len(results))
	return results, nil
}

func resolveMax(n int) int {
	if n <= 0 {
		return defaultMaxResults
	}
	return min(n, maxAllowedResults)
}

// Compile-time interface assertions.
var (
	_ core.Module       = (*Search)(nil)
	_ core.Configurable = (*Search)(nil)
	_ core.Provisioner  = (*Search)(nil)
	_ core.Validator    = (*Search)(nil)
	_ provider.Searcher = (*Search)(nil)
)
