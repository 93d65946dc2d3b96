package memory

import (
	"context"
	"errors"
)

// ErrEmptyConversation is returned when an operation is called without a
// conversation key.
var ErrEmptyConversation = errors.New("memory: empty conversation id")

// Service names under which memory modules register their store.
const (
	ServiceStore      = "memory.store"
	ServiceMaintainer = "memory.maintainer"
)

// Store persists all memory layers, scoped by conversation.
// Every bounded layer is trimmed to its cap before a write returns.
// Implementations must be safe for concurrent use.
type Store interface {
	// AppendMessage adds a message and returns the conversation's running
	// message count. The count survives trimming and restarts after Clear.
	AppendMessage(ctx context.Context, conversation string, msg Message) (int64, error)

	// RecentMessages returns up to n of the newest messages, oldest first.
	RecentMessages(ctx context.Context, conversation string, n int) ([]Message, error)

	AppendSummary(ctx context.Context, conversation string, s Summary) error

	// RecentSummaries returns up to n of the newest summaries, oldest first.
	RecentSummaries(ctx context.Context, conversation string, n int) ([]Summary, error)

	AppendLesson(ctx context.Context, conversation string, l Lesson) error

	// RecentLessons returns up to n of the newest lessons, oldest first.
	RecentLessons(ctx context.Context, conversation string, n int) ([]Lesson, error)

	// AddDocument stores doc unless a document with the same hash already
	// exists in the conversation. It reports whether the document was new.
	// An empty Hash is computed from Content.
	AddDocument(ctx context.Context, conversation string, doc Document) (bool, error)

	// SearchDocuments returns up to limit documents whose title or content
	// contains term, newest first. Matching compares Fold forms, so it
	// ignores case for every script.
	SearchDocuments(ctx context.Context, conversation, term string, limit int) ([]Document, error)

	// ListDocuments returns every document of the conversation, oldest first.
	ListDocuments(ctx context.Context, conversation string) ([]Document, error)

	// Clear removes all four layers of a conversation atomically.
	Clear(ctx context.Context, conversation string) error

	Stats(ctx context.Context, conversation string) (Stats, error)
}
