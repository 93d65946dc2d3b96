// Package gemini provides the Google Gemini provider module. Besides text
// completion it transcribes voice notes and describes images, which the
// orchestrator uses for Telegram media.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/majlis/internal/core"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/security"
)

func init() {
	core.RegisterModule(&Provider{})
}

const (
	transcribePrompt = "Transcribe this voice message verbatim. Reply with the transcript only."
	describePrompt   = "Describe this image precisely and concisely."
)

// Provider talks to the Gemini API through the genai SDK.
type Provider struct {
	config Config
	client *genai.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.gemini",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	if r, ok := core.Service[*security.Redactor](ctx, security.ServiceRedactor); ok {
		r.AddLiteral(p.config.APIKey)
	}
	if p.config.APIKey == "" {
		// Validate reports the missing key.
		return nil
	}
	client, err := newClient(context.Background(), p.config)
	if err != nil {
		return fmt.Errorf("provider.gemini: %w", err)
	}
	p.client = client
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

func newClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	return genai.NewClient(ctx, cc)
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == provider.MessageRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	resp, err := p.generate(ctx, p.config.Model, contents, p.generationConfig(req))
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	return parseResponse(resp), nil
}

// Transcribe implements provider.Transcriber.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return p.media(ctx, audio, mimeType, transcribePrompt)
}

// Describe implements provider.Describer.
func (p *Provider) Describe(ctx context.Context, image []byte, mimeType, question string) (string, error) {
	prompt := describePrompt
	if q := strings.TrimSpace(question); q != "" {
		prompt = describePrompt + " Focus on answering: " + q
	}
	return p.media(ctx, image, mimeType, prompt)
}

func (p *Provider) media(ctx context.Context, data []byte, mimeType, prompt string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("provider.gemini: empty media payload")
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	resp, err := p.generate(ctx, p.config.MediaModel, contents, nil)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", provider.ErrEmptyResponse
	}
	return text, nil
}

func (p *Provider) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if p.client == nil {
		return nil, fmt.Errorf("%w: gemini client not initialized", provider.ErrProviderDown)
	}
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, mapError(err)
	}
	return resp, nil
}

func (p *Provider) generationConfig(req provider.CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens) //nolint:gosec // bounded by config validation
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	return cfg
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// HealthCheck implements provider.HealthChecker by fetching the model metadata.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("%w: gemini client not initialized", provider.ErrProviderDown)
	}
	if _, err := p.client.Models.Get(ctx, p.config.Model, nil); err != nil {
		return fmt.Errorf("%w: health check: %w", provider.ErrProviderDown, err)
	}
	return nil
}

// parseResponse converts a genai response into a provider.CompletionResponse.
func parseResponse(resp *genai.GenerateContentResponse) provider.CompletionResponse {
	var cr provider.CompletionResponse
	if resp == nil {
		return cr
	}
	cr.Content = resp.Text()
	if len(resp.Candidates) > 0 {
		cr.FinishReason = mapFinishReason(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		cr.Usage = provider.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return cr
}

func mapFinishReason(r genai.FinishReason) provider.FinishReason {
	switch r {
	case genai.FinishReasonStop:
		return provider.FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return provider.FinishReasonLength
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReason(strings.ToLower(string(r)))
	}
}

// mapError classifies SDK errors into the provider sentinels so the chain
// can decide on failover.
func mapError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, apiErr.Message)
	case apiErr.Code >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrProviderDown, apiErr.Code, apiErr.Message)
	default:
		return fmt.Errorf("provider.gemini: HTTP %d: %s", apiErr.Code, apiErr.Message)
	}
}

// Compile-time interface assertions.
var (
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ provider.Transcriber   = (*Provider)(nil)
	_ provider.Describer     = (*Provider)(nil)
)
