package router

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore tracks conversation activity. It is safe for concurrent
// use. The clock is injectable for tests.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Touch records one message for conversation, creating its session on
// first use. It reports whether the session was created.
func (s *SessionStore) Touch(conversation string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[conversation]
	if !ok {
		sess = &Session{ID: uuid.NewString(), Conversation: conversation, CreatedAt: now}
		s.sessions[conversation] = sess
	}
	sess.LastActiveAt = now
	sess.Messages++
	return *sess, !ok
}

// Get returns a copy of the session for conversation.
func (s *SessionStore) Get(conversation string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[conversation]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Prune removes sessions idle for longer than maxIdle and returns how
// many were removed.
func (s *SessionStore) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	pruned := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActiveAt) > maxIdle {
			delete(s.sessions, id)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of tracked sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Snapshot returns copies of all sessions, most recently active first.
func (s *SessionStore) Snapshot() []Session {
	s.mu.Lock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b Session) int {
		return b.LastActiveAt.Compare(a.LastActiveAt)
	})
	return out
}
