// Package providertest provides test doubles for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/flemzord/majlis/internal/provider"
)

// MockProvider is a configurable test double for provider.Provider.
// A nil CompleteFunc answers with an empty response. All methods are safe
// for concurrent use.
type MockProvider struct {
	CompleteFunc    func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	ModelNameFunc   func() string
	HealthCheckFunc func(ctx context.Context) error

	mu            sync.Mutex
	CompleteCalls int
	HealthCalls   int
	Requests      []provider.CompletionRequest
}

// Complete records the request and delegates to CompleteFunc.
func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.mu.Lock()
	m.CompleteCalls++
	m.Requests = append(m.Requests, req)
	fn := m.CompleteFunc
	m.mu.Unlock()
	if fn == nil {
		return provider.CompletionResponse{}, nil
	}
	return fn(ctx, req)
}

// ModelName delegates to ModelNameFunc, defaulting to "mock".
func (m *MockProvider) ModelName() string {
	if m.ModelNameFunc == nil {
		return "mock"
	}
	return m.ModelNameFunc()
}

// HealthCheck delegates to HealthCheckFunc and tracks call count.
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.HealthCalls++
	m.mu.Unlock()
	if m.HealthCheckFunc == nil {
		return nil
	}
	return m.HealthCheckFunc(ctx)
}

// Calls returns the number of Complete calls so far.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CompleteCalls
}

// Prompts returns the user content of every recorded request.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Requests))
	for _, r := range m.Requests {
		if len(r.Messages) > 0 {
			out = append(out, r.Messages[len(r.Messages)-1].Content)
		}
	}
	return out
}

// Reply returns a MockProvider that always answers text.
func Reply(text string) *MockProvider {
	return &MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{Content: text, FinishReason: provider.FinishReasonStop}, nil
		},
	}
}

// Fail returns a MockProvider whose every call fails with err.
func Fail(err error) *MockProvider {
	return &MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{}, err
		},
		HealthCheckFunc: func(context.Context) error { return err },
	}
}

// Script returns a MockProvider that answers each call with the next step
// in order. A step is either a string (the content) or an error. Calls past
// the end repeat the last step.
func Script(steps ...any) *MockProvider {
	var (
		mu sync.Mutex
		i  int
	)
	return &MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			mu.Lock()
			step := steps[min(i, len(steps)-1)]
			i++
			mu.Unlock()
			switch v := step.(type) {
			case error:
				return provider.CompletionResponse{}, v
			case string:
				return provider.CompletionResponse{Content: v, FinishReason: provider.FinishReasonStop}, nil
			default:
				return provider.CompletionResponse{}, nil
			}
		},
	}
}

// MockSearcher is a test double for provider.Searcher.
type MockSearcher struct {
	SearchFunc func(ctx context.Context, query string, max int) ([]provider.SearchResult, error)

	mu      sync.Mutex
	Queries []string
}

// Search records the query and delegates to SearchFunc.
func (m *MockSearcher) Search(ctx context.Context, query string, max int) ([]provider.SearchResult, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()
	if m.SearchFunc == nil {
		return nil, nil
	}
	return m.SearchFunc(ctx, query, max)
}

// Calls returns the number of Search calls so far.
func (m *MockSearcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}

// Results returns a MockSearcher that always answers results.
func Results(results ...provider.SearchResult) *MockSearcher {
	return &MockSearcher{
		SearchFunc: func(context.Context, string, int) ([]provider.SearchResult, error) {
			return results, nil
		},
	}
}

// MockMedia implements provider.Transcriber and provider.Describer.
type MockMedia struct {
	TranscribeFunc func(ctx context.Context, audio []byte, mimeType string) (string, error)
	DescribeFunc   func(ctx context.Context, image []byte, mimeType, question string) (string, error)
}

// Transcribe delegates to TranscribeFunc.
func (m *MockMedia) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return m.TranscribeFunc(ctx, audio, mimeType)
}

// Describe delegates to DescribeFunc.
func (m *MockMedia) Describe(ctx context.Context, image []byte, mimeType, question string) (string, error) {
	return m.DescribeFunc(ctx, image, mimeType, question)
}

// Interface guards.
var (
	_ provider.Provider      = (*MockProvider)(nil)
	_ provider.HealthChecker = (*MockProvider)(nil)
	_ provider.Searcher      = (*MockSearcher)(nil)
	_ provider.Transcriber   = (*MockMedia)(nil)
	_ provider.Describer     = (*MockMedia)(nil)
)
