package provider

import "context"

// Provider is the interface for communicating with a language model.
// Concrete implementations live in modules/provider/* and register
// themselves as services during provisioning.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is an optional interface that providers may implement
// to support active health probing while in cooldown.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Searcher performs live web searches.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]SearchResult, error)
}

// Transcriber turns a voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Describer produces a textual description of an image. The question, when
// non-empty, steers the description.
type Describer interface {
	Describe(ctx context.Context, image []byte, mimeType, question string) (string, error)
}
