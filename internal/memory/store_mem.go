package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// InMemoryStore is a mutex-guarded Store used in tests and when no
// persistent memory module is configured.
type InMemoryStore struct {
	limits Limits
	now    func() time.Time

	mu    sync.Mutex
	convs map[string]*conversation
}

type conversation struct {
	seq       int64
	messages  []Message
	summaries []Summary
	lessons   []Lesson
	documents []Document
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store with the given caps.
func NewInMemoryStore(limits Limits) *InMemoryStore {
	return &InMemoryStore{
		limits: limits.WithDefaults(),
		now:    time.Now,
		convs:  make(map[string]*conversation),
	}
}

// find returns the record of id, or an empty one that is not stored.
func (s *InMemoryStore) find(id string) *conversation {
	if c, ok := s.convs[id]; ok {
		return c
	}
	return &conversation{}
}

// conv returns the record of id, creating it. Only write paths use it.
func (s *InMemoryStore) conv(id string) *conversation {
	c, ok := s.convs[id]
	if !ok {
		c = &conversation{}
		s.convs[id] = c
	}
	return c
}

func (s *InMemoryStore) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

// tail returns a copy of the last n items of items.
func tail[T any](items []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if len(items) > n {
		items = items[len(items)-n:]
	}
	return slices.Clone(items)
}

// trim drops the oldest items beyond limit.
func trim[T any](items []T, limit int) []T {
	if len(items) <= limit {
		return items
	}
	return slices.Clone(items[len(items)-limit:])
}

// AppendMessage implements Store.
func (s *InMemoryStore) AppendMessage(_ context.Context, id string, msg Message) (int64, error) {
	if id == "" {
		return 0, ErrEmptyConversation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.conv(id)
	msg.CreatedAt = s.stamp(msg.CreatedAt)
	c.seq++
	c.messages = trim(append(c.messages, msg), s.limits.MaxMessages)
	return c.seq, nil
}

// RecentMessages implements Store.
func (s *InMemoryStore) RecentMessages(_ context.Context, id string, n int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tail(s.find(id).messages, n), nil
}

// AppendSummary implements Store.
func (s *InMemoryStore) AppendSummary(_ context.Context, id string, sum Summary) error {
	if id == "" {
		return ErrEmptyConversation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.conv(id)
	sum.CreatedAt = s.stamp(sum.CreatedAt)
	c.summaries = trim(append(c.summaries, sum), s.limits.MaxSummaries)
	return nil
}

// RecentSummaries implements Store.
func (s *InMemoryStore) RecentSummaries(_ context.Context, id string, n int) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tail(s.find(id).summaries, n), nil
}

// AppendLesson implements Store.
func (s *InMemoryStore) AppendLesson(_ context.Context, id string, l Lesson) error {
	if id == "" {
		return ErrEmptyConversation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.conv(id)
	l.CreatedAt = s.stamp(l.CreatedAt)
	c.lessons = trim(append(c.lessons, l), s.limits.MaxLessons)
	return nil
}

// RecentLessons implements Store.
func (s *InMemoryStore) RecentLessons(_ context.Context, id string, n int) ([]Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tail(s.find(id).lessons, n), nil
}

// AddDocument implements Store.
func (s *InMemoryStore) AddDocument(_ context.Context, id string, doc Document) (bool, error) {
	if id == "" {
		return false, ErrEmptyConversation
	}
	if doc.Hash == "" {
		doc.Hash = ContentHash(doc.Content)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.conv(id)
	for _, d := range c.documents {
		if d.Hash == doc.Hash {
			return false, nil
		}
	}
	doc.CreatedAt = s.stamp(doc.CreatedAt)
	c.documents = append(c.documents, doc)
	return true, nil
}

// SearchDocuments implements Store.
func (s *InMemoryStore) SearchDocuments(_ context.Context, id, term string, limit int) ([]Document, error) {
	term = Fold(strings.TrimSpace(term))
	if term == "" || limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.find(id).documents
	var out []Document
	for i := len(docs) - 1; i >= 0 && len(out) < limit; i-- {
		d := docs[i]
		if strings.Contains(Fold(d.Title), term) || strings.Contains(Fold(d.Content), term) {
			out = append(out, d)
		}
	}
	return out, nil
}

// ListDocuments implements Store.
func (s *InMemoryStore) ListDocuments(_ context.Context, id string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.find(id).documents), nil
}

// Clear implements Store.
func (s *InMemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
	return nil
}

// Conversations returns how many conversations hold data.
func (s *InMemoryStore) Conversations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

// Stats implements Store.
func (s *InMemoryStore) Stats(_ context.Context, id string) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.find(id)
	return Stats{
		Messages:  len(c.messages),
		Summaries: len(c.summaries),
		Lessons:   len(c.lessons),
		Documents: len(c.documents),
	}, nil
}
