package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/flemzord/majlis/internal/provider"
)

// Chat completions wire types.

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Usage   oaiUsage    `json:"usage"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type oaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// oaiErrorBody is the OpenAI error envelope. Some servers put a bare
// string in "error" instead; those fall back to the raw body.
type oaiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// maxErrorBodySize caps how much of an error body ends up in an error.
const maxErrorBodySize = 4096

func newClient(cfg Config) *resty.Client {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeaders(cfg.Headers)
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	return c
}

// buildRequest converts a provider.CompletionRequest. The persona prompt
// becomes a leading system message. maxTokens applies when req.MaxTokens
// is zero.
func buildRequest(model string, maxTokens int, req provider.CompletionRequest) oaiRequest {
	msgs := make([]oaiMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, oaiMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, oaiMessage{Role: string(m.Role), Content: m.Content})
	}
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	return oaiRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
}

// parseResponse takes the first choice. A reply without choices yields an
// empty completion with its usage.
func parseResponse(resp oaiResponse) provider.CompletionResponse {
	out := provider.CompletionResponse{
		Usage: provider.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = mapFinishReason(resp.Choices[0].FinishReason)
	}
	return out
}

func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "stop":
		return provider.FinishReasonStop
	case "length":
		return provider.FinishReasonLength
	case "content_filter":
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReason(reason)
	}
}

// post sends body to path and decodes a successful reply into out.
func (p *Provider) post(ctx context.Context, path string, body, out any) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		Post(path)
	if err != nil {
		// Caller cancellation must not degrade health in the chain.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	if resp.IsError() {
		return mapError(resp.StatusCode(), resp.Body())
	}
	return nil
}

// mapError converts an error status into the provider sentinel errors.
func mapError(status int, body []byte) error {
	if len(body) > maxErrorBodySize {
		body = body[:maxErrorBodySize]
	}
	msg := strings.TrimSpace(string(body))
	var env oaiErrorBody
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		msg = env.Error.Message
		if env.Error.Type != "" {
			msg = env.Error.Type + ": " + msg
		}
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrProviderDown, status, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("provider.openai_compatible: authentication failed: HTTP %d: %s", status, msg)
	default:
		return fmt.Errorf("provider.openai_compatible: unexpected status %d: %s", status, msg)
	}
}
