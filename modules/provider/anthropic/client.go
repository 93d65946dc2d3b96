package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/flemzord/majlis/internal/provider"
)

// Messages API wire types.

type apiRequest struct {
	Model       string       `json:"model"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature *float64     `json:"temperature,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content    []apiBlock `json:"content"`
	StopReason string     `json:"stop_reason"`
	Usage      apiUsage   `json:"usage"`
}

type apiBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// apiErrorBody is the error envelope of the Messages API.
type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusOverloaded is returned by the API when it sheds load.
const statusOverloaded = 529

func newClient(cfg Config) *resty.Client {
	return resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("anthropic-version", cfg.APIVersion).
		SetHeader("Content-Type", "application/json")
}

// buildRequest converts a provider.CompletionRequest. The API rejects a
// conversation that does not start with a user turn, so leading assistant
// messages are dropped. maxTokens is used when req.MaxTokens is zero.
func buildRequest(model string, maxTokens int, req provider.CompletionRequest) apiRequest {
	msgs := make([]apiMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if len(msgs) == 0 && m.Role != provider.MessageRoleUser {
			continue
		}
		msgs = append(msgs, apiMessage{Role: string(m.Role), Content: m.Content})
	}
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	return apiRequest{
		Model:       model,
		System:      req.System,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
}

// parseResponse concatenates the text blocks of a reply.
func parseResponse(resp apiResponse) provider.CompletionResponse {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return provider.CompletionResponse{
		Content:      b.String(),
		FinishReason: mapStopReason(resp.StopReason),
		Usage: provider.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

// mapStopReason converts an Anthropic stop_reason to a provider.FinishReason.
func mapStopReason(reason string) provider.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return provider.FinishReasonStop
	case "max_tokens":
		return provider.FinishReasonLength
	case "refusal":
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReason(reason)
	}
}

// send posts a Messages request and decodes the reply.
func (a *Anthropic) send(ctx context.Context, body apiRequest) (apiResponse, error) {
	var out apiResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/messages")
	if err != nil {
		// Caller cancellation must not degrade health in the chain.
		if ctx.Err() != nil {
			return apiResponse{}, ctx.Err()
		}
		return apiResponse{}, fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	if resp.IsError() {
		return apiResponse{}, mapError(resp.StatusCode(), resp.Body())
	}
	return out, nil
}

// mapError converts an error status into the provider sentinel errors.
func mapError(status int, body []byte) error {
	msg := string(body)
	var env apiErrorBody
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		msg = env.Error.Type + ": " + env.Error.Message
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
	case status == statusOverloaded || status >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrProviderDown, status, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("provider.anthropic: authentication failed: HTTP %d: %s", status, msg)
	default:
		return fmt.Errorf("provider.anthropic: unexpected status %d: %s", status, msg)
	}
}
