// Package anthropic implements the provider.anthropic module, bridging
// majlis to the Anthropic Messages API. It is meant as a failover entry of
// the provider chain.
package anthropic

import (
	"context"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/majlis/internal/core"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/security"
)

func init() {
	core.RegisterModule(&Anthropic{})
}

// Interface guards.
var (
	_ core.Module            = (*Anthropic)(nil)
	_ core.Configurable      = (*Anthropic)(nil)
	_ core.Provisioner       = (*Anthropic)(nil)
	_ core.Validator         = (*Anthropic)(nil)
	_ provider.Provider      = (*Anthropic)(nil)
	_ provider.HealthChecker = (*Anthropic)(nil)
)

// Anthropic is the provider.anthropic module.
type Anthropic struct {
	config Config
	client *resty.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.anthropic",
		New: func() core.Module { return &Anthropic{} },
	}
}

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return err
	}
	a.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.config.defaults()
	a.logger = ctx.Logger
	a.client = newClient(a.config)
	if r, ok := core.Service[*security.Redactor](ctx, security.ServiceRedactor); ok {
		r.AddLiteral(a.config.APIKey)
	}
	return nil
}

// Validate implements core.Validator.
func (a *Anthropic) Validate() error {
	return a.config.validate()
}

// ModelName implements provider.Provider.
func (a *Anthropic) ModelName() string {
	return a.config.Model
}

// Complete implements provider.Provider.
func (a *Anthropic) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	if a.client == nil {
		return provider.CompletionResponse{}, provider.ErrProviderDown
	}
	resp, err := a.send(ctx, buildRequest(a.config.Model, a.config.MaxTokens, req))
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	return parseResponse(resp), nil
}

// HealthCheck sends a one-token completion. The API has no dedicated
// health endpoint.
func (a *Anthropic) HealthCheck(ctx context.Context) error {
	if a.client == nil {
		return provider.ErrProviderDown
	}
	_, err := a.send(ctx, apiRequest{
		Model:     a.config.Model,
		Messages:  []apiMessage{{Role: string(provider.MessageRoleUser), Content: "hi"}},
		MaxTokens: 1,
	})
	return err
}
