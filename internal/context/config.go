// Package ctxengine assembles the per-request context block from memory and
// keeps the summary layer fed.
package ctxengine

import "time"

// Config holds the tuning knobs for the Builder.
type Config struct {
	// MaxChars is the hard budget for the assembled context, in characters.
	MaxChars int `yaml:"max_chars"`

	// RecentMessages is how many raw messages are included.
	RecentMessages int `yaml:"recent_messages"`

	// RecentSummaries is how many summaries are included.
	RecentSummaries int `yaml:"recent_summaries"`

	// RecentLessons is how many lessons are included.
	RecentLessons int `yaml:"recent_lessons"`

	// MessageShare is the fraction of the budget held back for the
	// raw-message section when earlier sections are large.
	MessageShare float64 `yaml:"message_share"`

	// StoreTimeout bounds every store read.
	StoreTimeout time.Duration `yaml:"store_timeout"`
}

func (c Config) withDefaults() Config {
	if c.MaxChars == 0 {
		c.MaxChars = 5000
	}
	if c.RecentMessages <= 0 {
		c.RecentMessages = 12
	}
	if c.RecentSummaries <= 0 {
		c.RecentSummaries = 3
	}
	if c.RecentLessons <= 0 {
		c.RecentLessons = 5
	}
	if c.MessageShare <= 0 || c.MessageShare >= 1 {
		c.MessageShare = 0.4
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	return c
}

// SummarizerConfig holds the tuning knobs for the Summarizer.
type SummarizerConfig struct {
	// Threshold fires a summary every Threshold messages.
	Threshold int `yaml:"threshold"`

	// Timeout bounds one background summarization.
	Timeout time.Duration `yaml:"timeout"`

	// MaxTokens caps the summary length requested from the model.
	MaxTokens int `yaml:"max_tokens"`
}

func (c SummarizerConfig) withDefaults() SummarizerConfig {
	if c.Threshold <= 0 {
		c.Threshold = 20
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 400
	}
	return c
}
