// Package openaicompat implements the provider.openai_compatible module: any
// endpoint speaking the OpenAI chat completions protocol, selected by
// base_url. Mistral, Groq, DeepSeek, vLLM and a local Ollama all qualify.
package openaicompat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/majlis/internal/core"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/security"
)

func init() {
	core.RegisterModule(&Provider{})
}

var (
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
)

// Provider is the provider.openai_compatible module.
type Provider struct {
	config Config
	client *resty.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai_compatible",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger
	p.client = newClient(p.config)
	if r, ok := core.Service[*security.Redactor](ctx, security.ServiceRedactor); ok {
		r.AddLiteral(p.config.APIKey)
	}
	if p.config.APIKey == "" && p.logger != nil {
		p.logger.Info("provider.openai_compatible: no api key, sending unauthenticated requests", "base_url", p.config.BaseURL)
	}
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	if p.client == nil {
		return provider.CompletionResponse{}, provider.ErrProviderDown
	}
	var out oaiResponse
	if err := p.post(ctx, "/chat/completions", buildRequest(p.config.Model, p.config.MaxTokens, req), &out); err != nil {
		return provider.CompletionResponse{}, err
	}
	return parseResponse(out), nil
}

// HealthCheck calls GET /models, which every compatible server exposes.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if p.client == nil {
		return provider.ErrProviderDown
	}
	resp, err := p.client.R().SetContext(ctx).Get("/models")
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: health check: %w", provider.ErrProviderDown, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: health check returned HTTP %d", provider.ErrProviderDown, resp.StatusCode())
	}
	return nil
}
