package provider

import (
	"context"
	"strings"
)

// Generate runs a single-prompt completion and returns the trimmed text.
// Blank output is reported as ErrEmptyResponse so callers can tell it apart
// from a successful answer.
func Generate(ctx context.Context, p Provider, prompt, system string, maxTokens int, temperature float64) (string, error) {
	resp, err := p.Complete(ctx, CompletionRequest{
		System:      system,
		Messages:    []Message{{Role: MessageRoleUser, Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
