// Package discussion runs the ambient persona discussion: one cancellable
// background loop per conversation over a volatile, capped transcript.
package discussion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/majlis/internal/multiagent"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/google/uuid"
)

var (
	// ErrAlreadyActive is returned by Start when a discussion is running.
	ErrAlreadyActive = errors.New("discussion: already active")

	// ErrNotActive is returned when no discussion is running.
	ErrNotActive = errors.New("discussion: not active")

	// ErrNoReply is returned by Interject when no persona could answer.
	ErrNoReply = errors.New("discussion: no reply generated")

	// ErrClosed is returned by Start after StopAll.
	ErrClosed = errors.New("discussion: manager closed")
)

// UserSpeaker labels user entries in the transcript.
const UserSpeaker = "المستخدم"

// EventKind distinguishes emitted discussion messages.
type EventKind string

// Event kinds.
const (
	EventOpener    EventKind = "opener"
	EventUtterance EventKind = "utterance"
	EventTopic     EventKind = "topic"
	EventExpired   EventKind = "expired"
)

// Event is one message produced by a discussion loop. Persona is empty
// for topic and expiry events.
type Event struct {
	Conversation string
	Kind         EventKind
	Persona      multiagent.Persona
	Text         string
}

// Sink delivers events to the conversation. It is called from loop
// goroutines and must be safe for concurrent use.
type Sink func(ctx context.Context, ev Event)

// Reply is a persona answer to a user interjection.
type Reply struct {
	Persona multiagent.Persona
	Text    string
}

// Manager owns every discussion session.
type Manager struct {
	provider provider.Provider
	searcher provider.Searcher
	roster   []multiagent.Persona
	cfg      Config
	sink     Sink
	logger   *slog.Logger
	onFail   func(stage string, err error)

	rngMu sync.Mutex
	rng   *rand.Rand

	// base outlives individual sessions; StopAll cancels it to interrupt
	// in-flight generation at shutdown.
	base       context.Context
	cancelBase context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithSearcher enables the occasional search enrichment.
func WithSearcher(s provider.Searcher) Option {
	return func(m *Manager) { m.searcher = s }
}

// WithRand replaces the random source used for personas, topics, search
// and intervals.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rng = r }
}

// WithFailureHook registers fn, called for failed generation ("generate")
// and search ("search") calls.
func WithFailureHook(fn func(stage string, err error)) Option {
	return func(m *Manager) { m.onFail = fn }
}

// NewManager creates a Manager. sink may be nil.
func NewManager(p provider.Provider, roster []multiagent.Persona, cfg Config, sink Sink, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = func(context.Context, Event) {}
	}
	base, cancel := context.WithCancel(context.Background())
	m := &Manager{
		provider:   p,
		roster:     slices.Clone(roster),
		cfg:        cfg.withDefaults(),
		sink:       sink,
		logger:     logger.With("component", "discussion"),
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6d616a6c6973)),
		base:       base,
		cancelBase: cancel,
		sessions:   make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start activates the discussion for conversation with a random topic
// and a fresh transcript seeded with the topic and the opener. The opener
// is emitted after OpenerDelay, then the loop runs until Stop.
func (m *Manager) Start(conversation string) (Status, error) {
	if len(m.roster) == 0 {
		return Status{}, multiagent.ErrEmptyRoster
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base.Err() != nil {
		return Status{}, ErrClosed
	}
	if _, ok := m.sessions[conversation]; ok {
		return Status{}, ErrAlreadyActive
	}

	ctx, cancel := context.WithCancel(m.base)
	s := &session{
		id:           uuid.NewString(),
		conversation: conversation,
		started:      time.Now(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		cap:          m.cfg.TranscriptCap,
		topic:        m.pickTopic(""),
	}
	opener := m.roster[0]
	s.transcript = []Entry{
		{Speaker: "الموضوع", Text: s.topic, Seed: true},
		{Speaker: opener.Name, Text: m.cfg.Opener, Seed: true},
	}
	m.sessions[conversation] = s
	st := s.status()

	m.wg.Add(1)
	go m.loop(s)

	m.logger.Info("discussion: started", "conversation", conversation, "session", s.id, "topic", s.topic)
	return st, nil
}

// Stop deactivates the discussion. It does not wait for an in-flight
// generation; its output is discarded.
func (m *Manager) Stop(conversation string) error {
	m.mu.Lock()
	s, ok := m.sessions[conversation]
	if ok {
		delete(m.sessions, conversation)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotActive
	}
	s.markStopped()
	m.logger.Info("discussion: stopped", "conversation", conversation, "session", s.id)
	return nil
}

// Active reports whether conversation has a running discussion.
func (m *Manager) Active(conversation string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[conversation]
	return ok
}

// Status returns a snapshot of conversation's discussion.
func (m *Manager) Status(conversation string) Status {
	m.mu.Lock()
	s, ok := m.sessions[conversation]
	m.mu.Unlock()
	if !ok {
		return Status{}
	}
	return s.status()
}

// Transcript returns a copy of the conversation's transcript.
func (m *Manager) Transcript(conversation string) []Entry {
	m.mu.Lock()
	s, ok := m.sessions[conversation]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return s.entries()
}

// ActiveCount returns the number of running discussions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Interject appends the user's message to the transcript and returns one
// persona reply referencing it. The reply is appended too. The loop keeps
// running.
func (m *Manager) Interject(ctx context.Context, conversation, text string) (Reply, error) {
	m.mu.Lock()
	s, ok := m.sessions[conversation]
	m.mu.Unlock()
	if !ok {
		return Reply{}, ErrNotActive
	}

	s.append(Entry{Speaker: UserSpeaker, Text: text})
	persona := m.pickPersona()

	prompt := interjectionPrompt(s.currentTopic(), s.recent(m.cfg.ContextWindow), text)
	reply, err := m.generate(ctx, persona, prompt)
	if err != nil {
		m.failed("generate", conversation, err)
		return Reply{}, fmt.Errorf("%w: %w", ErrNoReply, err)
	}
	s.append(Entry{Speaker: persona.Name, Text: reply})
	return Reply{Persona: persona, Text: reply}, nil
}

// Reap stops every session older than maxAge (MaxDuration when zero),
// emitting an expiry event for each. It returns how many were stopped.
func (m *Manager) Reap(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = m.cfg.MaxDuration
	}

	var expired []*session
	m.mu.Lock()
	for conv, s := range m.sessions {
		if time.Since(s.started) > maxAge {
			expired = append(expired, s)
			delete(m.sessions, conv)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.markStopped()
		m.logger.Info("discussion: expired", "conversation", s.conversation, "session", s.id)
		m.sink(m.base, Event{Conversation: s.conversation, Kind: EventExpired})
	}
	return len(expired)
}

// StopAll stops every session and waits for the loops to exit or ctx to
// end. In-flight generation calls are interrupted.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.markStopped()
	}
	m.cancelBase()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("discussion: waiting for loops: %w", ctx.Err())
	}
}

func (m *Manager) loop(s *session) {
	defer m.wg.Done()
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("discussion: loop panicked", "conversation", s.conversation, "panic", r)
		}
	}()

	if !sleep(s.ctx, m.cfg.OpenerDelay) {
		return
	}
	m.sink(s.ctx, Event{Conversation: s.conversation, Kind: EventOpener, Persona: m.roster[0], Text: m.cfg.Opener})

	for {
		if s.ctx.Err() != nil {
			return
		}
		round := s.nextRound()

		if round%m.cfg.TopicEvery == 0 {
			topic := m.pickTopic(s.currentTopic())
			s.mu.Lock()
			s.topic = topic
			s.appendLocked(Entry{Speaker: "الموضوع", Text: topic})
			s.mu.Unlock()
			m.sink(s.ctx, Event{Conversation: s.conversation, Kind: EventTopic, Text: topic})
		}

		persona := m.pickPersona()
		topic := s.currentTopic()

		var findings string
		if m.searcher != nil && m.chance(m.cfg.SearchProbability) {
			findings = m.search(s.conversation, topic)
		}

		text, err := m.generate(m.base, persona, utterancePrompt(topic, s.recent(m.cfg.ContextWindow), findings))
		switch {
		case err != nil:
			m.failed("generate", s.conversation, err)
		case s.appendIfActive(Entry{Speaker: persona.Name, Text: text}):
			m.sink(s.ctx, Event{Conversation: s.conversation, Kind: EventUtterance, Persona: persona, Text: text})
		default:
			m.logger.Debug("discussion: discarded utterance after stop", "conversation", s.conversation)
			return
		}

		if !sleep(s.ctx, m.interval()) {
			return
		}
	}
}

func (m *Manager) generate(ctx context.Context, p multiagent.Persona, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.GenerateTimeout)
	defer cancel()
	return provider.Generate(ctx, m.provider, prompt, p.Preamble(), m.cfg.MaxTokens, m.cfg.Temperature)
}

func (m *Manager) search(conversation, topic string) string {
	ctx, cancel := context.WithTimeout(m.base, m.cfg.SearchTimeout)
	defer cancel()

	results, err := m.searcher.Search(ctx, topic, 3)
	if err != nil {
		m.failed("search", conversation, err)
		return ""
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, "- "+r.Title+": "+r.Snippet)
	}
	return strings.Join(lines, "\n")
}

func (m *Manager) failed(stage, conversation string, err error) {
	m.logger.Warn("discussion: call failed", "stage", stage, "conversation", conversation, "error", err)
	if m.onFail != nil {
		m.onFail(stage, err)
	}
}

func (m *Manager) pickPersona() multiagent.Persona {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.roster[m.rng.IntN(len(m.roster))]
}

// pickTopic returns a random topic, avoiding current when possible.
func (m *Manager) pickTopic(current string) string {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	topics := m.cfg.Topics
	candidates := make([]string, 0, len(topics))
	for _, t := range topics {
		if t != current {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return topics[0]
	}
	return candidates[m.rng.IntN(len(candidates))]
}

func (m *Manager) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Float64() < p
}

func (m *Manager) interval() time.Duration {
	span := m.cfg.MaxInterval - m.cfg.MinInterval
	if span <= 0 {
		return m.cfg.MinInterval
	}
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.cfg.MinInterval + time.Duration(m.rng.Int64N(int64(span)+1))
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func utterancePrompt(topic, recent, findings string) string {
	if recent == "" {
		recent = "بداية النقاش"
	}
	parts := []string{"الموضوع الرئيسي: " + topic}
	if findings != "" {
		parts = append(parts, "نتائج بحث حديثة قد تفيدك:\n"+findings)
	}
	parts = append(parts,
		"آخر ما قاله الزملاء:\n"+recent,
		"اكتب ردك في النقاش (جملتين أو ثلاث فقط، بشكل طبيعي وحواري، بالعربية).\nلا تكرر ما قيل، أضف رأياً أو فكرة جديدة أو اعتراضاً أو سؤالاً.",
	)
	return strings.Join(parts, "\n\n")
}

func interjectionPrompt(topic, recent, userText string) string {
	return strings.Join([]string{
		"الموضوع الرئيسي: " + topic,
		"آخر ما قيل في النقاش:\n" + recent,
		"تدخّل المستخدم بالرسالة التالية:\n" + userText,
		"رد على المستخدم مباشرة في جملتين أو ثلاث بالعربية، واربط ردك بالنقاش الجاري.",
	}, "\n\n")
}
