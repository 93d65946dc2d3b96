// Package security keeps credentials out of log output.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// ServiceRedactor is the service name under which the process-wide
// *Redactor is registered so modules can add the credentials they load.
const ServiceRedactor = "security.redactor"

// Redactor replaces secret values in strings with RedactPlaceholder.
// Known key formats are matched by pattern; credentials loaded at runtime
// (provider keys, the bot token) are registered as literals.
// All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddPattern adds a compiled regex pattern to the redactor.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral registers a secret value that should be redacted on sight.
// Empty strings and duplicates are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.literals {
		if l == secret {
			return
		}
	}
	r.literals = append(r.literals, secret)
}

// Literals returns a copy of the registered literal secrets.
func (r *Redactor) Literals() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.literals...)
}

// Redact replaces all known secret patterns and literal values in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	// Literals first: a pattern may otherwise split a literal.
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// DefaultPatterns returns compiled regex patterns for the credential formats
// majlis handles.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Google API keys (Gemini).
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
		// Telegram bot tokens, also when embedded in API URLs.
		regexp.MustCompile(`[0-9]{8,10}:[A-Za-z0-9_\-]{35}`),
		// OpenAI-compatible keys.
		regexp.MustCompile(`sk-[A-Za-z0-9_\-]{20,}`),
		// Authorization headers.
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]{16,}`),
	}
}
