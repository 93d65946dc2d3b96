package discussion

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Entry is one line of the volatile transcript. Seed entries (the topic
// and the opener) survive eviction.
type Entry struct {
	Speaker string
	Text    string
	Seed    bool
}

// Status is a snapshot of one conversation's discussion.
type Status struct {
	Active        bool      `json:"active"`
	SessionID     string    `json:"session_id,omitempty"`
	Topic         string    `json:"topic,omitempty"`
	Rounds        int       `json:"rounds"`
	TranscriptLen int       `json:"transcript_len"`
	StartedAt     time.Time `json:"started_at,omitzero"`
}

type session struct {
	id           string
	conversation string
	started      time.Time
	cancel       context.CancelFunc
	ctx          context.Context
	done         chan struct{}

	mu         sync.Mutex
	topic      string
	rounds     int
	stopped    bool
	transcript []Entry
	cap        int
}

func (s *session) append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(e)
}

// appendLocked adds e and evicts the oldest non-seed entries beyond cap.
func (s *session) appendLocked(e Entry) {
	s.transcript = append(s.transcript, e)
	for len(s.transcript) > s.cap {
		i := 0
		for i < len(s.transcript) && s.transcript[i].Seed {
			i++
		}
		if i == len(s.transcript) {
			return
		}
		s.transcript = append(s.transcript[:i], s.transcript[i+1:]...)
	}
}

// appendIfActive adds e unless the session was stopped. It reports
// whether e was kept.
func (s *session) appendIfActive(e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.appendLocked(e)
	return true
}

// recent renders the last n entries as "speaker: text" lines.
func (s *session) recent(n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := max(len(s.transcript)-n, 0)
	lines := make([]string, 0, len(s.transcript)-start)
	for _, e := range s.transcript[start:] {
		lines = append(lines, e.Speaker+": "+e.Text)
	}
	return strings.Join(lines, "\n")
}

func (s *session) currentTopic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

// nextRound increments the round counter and returns it.
func (s *session) nextRound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds++
	return s.rounds
}

func (s *session) markStopped() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}

func (s *session) status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Active:        !s.stopped,
		SessionID:     s.id,
		Topic:         s.topic,
		Rounds:        s.rounds,
		TranscriptLen: len(s.transcript),
		StartedAt:     s.started,
	}
}

func (s *session) entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.transcript))
	copy(out, s.transcript)
	return out
}
