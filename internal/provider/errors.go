package provider

import "errors"

// Sentinel errors for provider operations.
var (
	// ErrRateLimit indicates the provider returned a rate limit response.
	ErrRateLimit = errors.New("provider: rate limited")

	// ErrProviderDown indicates the provider is temporarily unavailable.
	ErrProviderDown = errors.New("provider: unavailable")

	// ErrAllProviders indicates every provider in the chain failed.
	ErrAllProviders = errors.New("provider: all providers failed")

	// ErrNoProvider indicates no provider is configured.
	ErrNoProvider = errors.New("provider: no provider configured")

	// ErrEmptyResponse indicates the model answered with no text.
	ErrEmptyResponse = errors.New("provider: empty response")
)

// IsRetryable reports whether the error is transient and the request
// can be retried with a different provider or after a delay.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}
