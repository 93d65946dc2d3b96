package gateway

import (
	"sync"
	"time"
)

// Feed event kinds besides the discussion event kinds.
const (
	FeedUser  = "user"
	FeedReply = "reply"
)

// FeedEvent is one message pushed to websocket subscribers of a
// conversation.
type FeedEvent struct {
	Conversation string    `json:"conversation"`
	Kind         string    `json:"kind"`
	Speaker      string    `json:"speaker,omitempty"`
	Text         string    `json:"text"`
	Time         time.Time `json:"time"`
}

type subscriber struct {
	ch   chan FeedEvent
	once sync.Once
}

// Feed fans conversation events out to subscribers. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type Feed struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	buffer int
	closed bool
}

// NewFeed creates a feed whose subscribers buffer up to buffer events.
func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = 32
	}
	return &Feed{subs: make(map[string]map[*subscriber]struct{}), buffer: buffer}
}

// Subscribe registers interest in a conversation. The returned cancel
// func is idempotent. The channel is closed by cancel or Close.
func (f *Feed) Subscribe(conversation string) (<-chan FeedEvent, func()) {
	s := &subscriber{ch: make(chan FeedEvent, f.buffer)}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	set, ok := f.subs[conversation]
	if !ok {
		set = make(map[*subscriber]struct{})
		f.subs[conversation] = set
	}
	set[s] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if set, ok := f.subs[conversation]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(f.subs, conversation)
			}
		}
		s.once.Do(func() { close(s.ch) })
	}
	return s.ch, cancel
}

// Publish delivers ev to the subscribers of ev.Conversation and returns
// how many received it.
func (f *Feed) Publish(ev FeedEvent) int {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := 0
	for s := range f.subs[ev.Conversation] {
		select {
		case s.ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the subscriber count of a conversation.
func (f *Feed) Subscribers(conversation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[conversation])
}

// Conversations returns how many conversations have subscribers.
func (f *Feed) Conversations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for conv, set := range f.subs {
		for s := range set {
			s.once.Do(func() { close(s.ch) })
		}
		delete(f.subs, conv)
	}
}
