// Package memory defines the per-conversation memory model: a short-term
// message log, rolling summaries, a lesson log and a knowledge base.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Message is one entry of the short-term log. Role is "user", a persona
// name, or a system tag.
type Message struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Well-known message roles. Persona replies use the persona name.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Summary condenses a window of messages.
type Summary struct {
	Text      string
	CreatedAt time.Time
}

// Outcome classifies a lesson.
type Outcome string

// Lesson outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Lesson records how an executed step turned out. Lessons are advisory
// context only.
type Lesson struct {
	Text      string
	Outcome   Outcome
	CreatedAt time.Time
}

// Document is an ingested knowledge document. Hash is the hex SHA-256 of
// Content and is unique within a conversation.
type Document struct {
	Title     string
	Content   string
	Hash      string
	CreatedAt time.Time
}

// Stats reports per-layer record counts for one conversation.
type Stats struct {
	Messages  int `json:"messages"`
	Summaries int `json:"summaries"`
	Lessons   int `json:"lessons"`
	Documents int `json:"documents"`
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Limits caps each bounded layer. Documents are unbounded.
type Limits struct {
	MaxMessages  int `yaml:"max_messages"`
	MaxSummaries int `yaml:"max_summaries"`
	MaxLessons   int `yaml:"max_lessons"`
}

// Default caps.
const (
	DefaultMaxMessages  = 60
	DefaultMaxSummaries = 10
	DefaultMaxLessons   = 20
)

// WithDefaults returns l with zero or negative caps replaced by defaults.
func (l Limits) WithDefaults() Limits {
	if l.MaxMessages <= 0 {
		l.MaxMessages = DefaultMaxMessages
	}
	if l.MaxSummaries <= 0 {
		l.MaxSummaries = DefaultMaxSummaries
	}
	if l.MaxLessons <= 0 {
		l.MaxLessons = DefaultMaxLessons
	}
	return l
}
