package router

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/majlis/internal/channel"
	"github.com/flemzord/majlis/internal/security"
	"github.com/flemzord/majlis/pkg/message"
)

const (
	defaultInboxSize     = 256
	defaultMaxIdle       = 30 * time.Minute
	defaultPruneInterval = 5 * time.Minute
)

// ResponseSender delivers outbound messages to a channel.
type ResponseSender interface {
	Send(ctx context.Context, msg message.OutboundMessage) error
}

// ChannelLookup resolves a channel by name. Implemented by
// channel.Dispatcher.
type ChannelLookup interface {
	Get(name string) (channel.Channel, bool)
}

// ReplyFunc sends one text message back to the conversation being handled.
type ReplyFunc func(ctx context.Context, text string)

// Handler processes one inbound message. It runs while the conversation's
// lane is held and may call reply any number of times.
type Handler interface {
	Handle(ctx context.Context, conversation string, msg message.InboundMessage, reply ReplyFunc)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conversation string, msg message.InboundMessage, reply ReplyFunc)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, conversation string, msg message.InboundMessage, reply ReplyFunc) {
	f(ctx, conversation, msg, reply)
}

// Config holds the configuration for a Router.
type Config struct {
	Workers   int           `yaml:"workers"`
	InboxSize int           `yaml:"inbox_size"`
	MaxIdle   time.Duration `yaml:"max_idle"`

	// MessagesPerMinute caps inbound messages per conversation. Zero
	// disables the cap.
	MessagesPerMinute int `yaml:"messages_per_minute"`

	Handler        Handler        `yaml:"-"`
	ResponseSender ResponseSender `yaml:"-"`

	// Channels resolves channels for typing indicators. Nil disables them.
	Channels ChannelLookup `yaml:"-"`

	// OnDrop is called for each rejected message.
	OnDrop func(reason error) `yaml:"-"`

	// Audit records rate-limited messages. Nil disables auditing.
	Audit *security.AuditLogger `yaml:"-"`

	Logger *slog.Logger `yaml:"-"`
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkerCount
	}
	if c.InboxSize <= 0 {
		c.InboxSize = defaultInboxSize
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = defaultMaxIdle
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.OnDrop == nil {
		c.OnDrop = func(error) {}
	}
	return c
}

// Router owns the inbox and the worker pool.
type Router struct {
	cfg      Config
	inbox    chan envelope
	inboxMu  sync.RWMutex
	lanes    *LaneLock
	pool     *WorkerPool
	sessions *SessionStore
	limiter  *security.RateLimiter
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopped  atomic.Bool
	logger   *slog.Logger

	pruneMu   sync.Mutex
	lastPrune time.Time
}

// NewRouter creates a Router.
func NewRouter(cfg Config) (*Router, error) {
	cfg = cfg.withDefaults()
	if cfg.Handler == nil {
		return nil, ErrNoHandler
	}
	if cfg.ResponseSender == nil {
		return nil, ErrNoResponseSender
	}
	return &Router{
		cfg:      cfg,
		inbox:    make(chan envelope, cfg.InboxSize),
		lanes:    NewLaneLock(),
		pool:     NewWorkerPool(cfg.Workers),
		sessions: NewSessionStore(),
		limiter:  security.NewRateLimiter(cfg.MessagesPerMinute, time.Minute),
		logger:   cfg.Logger.With("component", "router"),
	}, nil
}

// Start launches the worker pool.
func (r *Router) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.inboxMu.Lock()
	if r.stopped.Load() {
		r.inboxMu.Unlock()
		cancel()
		r.logger.Warn("router: start ignored, router already stopped")
		return
	}
	r.cancel = cancel
	r.inboxMu.Unlock()

	r.pool.Start(ctx, r.inbox, r.process)
	r.logger.Info("router: started", "workers", r.cfg.Workers, "inbox_size", r.cfg.InboxSize)
}

// Submit enqueues an inbound message. It never blocks: a full inbox drops
// the message with ErrInboxFull.
func (r *Router) Submit(msg message.InboundMessage) error {
	r.inboxMu.RLock()
	defer r.inboxMu.RUnlock()

	if r.stopped.Load() {
		return ErrRouterStopped
	}

	key := SessionKeyFromMessage(msg)
	if err := r.limiter.Allow(key.Conversation()); err != nil {
		r.logger.Warn("router: conversation rate limited, message dropped", "channel", key.Channel, "chat_id", key.ChatID)
		r.cfg.Audit.Log(security.AuditEvent{
			Type:         security.EventRateLimit,
			Conversation: key.Conversation(),
			Channel:      key.Channel,
			ChatID:       key.ChatID,
			SenderID:     msg.Sender.ID,
		})
		r.cfg.OnDrop(ErrRateLimited)
		return ErrRateLimited
	}
	select {
	case r.inbox <- envelope{Message: msg, Key: key}:
		return nil
	default:
		r.logger.Warn("router: inbox full, message dropped", "channel", key.Channel, "chat_id", key.ChatID)
		r.cfg.OnDrop(ErrInboxFull)
		return ErrInboxFull
	}
}

// Stop closes the inbox, cancels in-flight handlers and waits for the
// workers to exit.
func (r *Router) Stop(_ context.Context) {
	r.stopOnce.Do(func() {
		r.logger.Info("router: stopping")

		r.inboxMu.Lock()
		r.stopped.Store(true)
		close(r.inbox)
		cancel := r.cancel
		r.inboxMu.Unlock()

		if cancel != nil {
			cancel()
		}
		r.pool.Wait()
		r.logger.Info("router: stopped")
	})
}

// Deliver sends text to a conversation outside a request, for instance a
// discussion utterance.
func (r *Router) Deliver(ctx context.Context, conversation, text string) error {
	key, err := ParseConversation(conversation)
	if err != nil {
		return err
	}
	out := message.NewTextMessage(message.Chat{ID: key.ChatID}, text)
	out.Channel = key.Channel
	out.ThreadID = key.ThreadID
	return r.cfg.ResponseSender.Send(ctx, out)
}

// Sessions returns the session tracker.
func (r *Router) Sessions() *SessionStore { return r.sessions }

// PruneSessions drops idle sessions now and returns how many were removed.
func (r *Router) PruneSessions() int {
	r.limiter.Prune()
	return r.sessions.Prune(r.cfg.MaxIdle)
}

func (r *Router) process(ctx context.Context, env envelope) {
	conv := env.Key.Conversation()
	start := time.Now()

	r.lanes.Acquire(conv)
	defer r.lanes.Release(conv)

	if _, created := r.sessions.Touch(conv); created {
		r.logger.Info("router: new session", "conversation", conv)
	}

	if ctx.Err() != nil {
		return
	}

	var stopTyping context.CancelFunc = func() {}
	if r.cfg.Channels != nil {
		if ch, ok := r.cfg.Channels.Get(env.Key.Channel); ok {
			if tc, ok := ch.(channel.TypingChannel); ok {
				var tctx context.Context
				tctx, stopTyping = context.WithCancel(ctx)
				channel.StartTypingLoop(tctx, tc, env.Message.Chat, 0)
			}
		}
	}
	defer stopTyping()

	reply := func(ctx context.Context, text string) {
		if text == "" {
			return
		}
		if err := r.cfg.ResponseSender.Send(ctx, message.ReplyTo(env.Message, text)); err != nil {
			r.logger.Error("router: failed to send response", "conversation", conv, "error", err)
		}
	}
	r.cfg.Handler.Handle(ctx, conv, env.Message, reply)

	r.logger.Debug("router: message handled", "conversation", conv, "elapsed", time.Since(start).Round(time.Millisecond))
	r.maybePrune()
}

// maybePrune drops idle sessions at most once per prune interval.
func (r *Router) maybePrune() {
	r.pruneMu.Lock()
	defer r.pruneMu.Unlock()
	if time.Since(r.lastPrune) < defaultPruneInterval {
		return
	}
	r.lastPrune = time.Now()
	if n := r.PruneSessions(); n > 0 {
		r.logger.Info("router: pruned idle sessions", "count", n)
	}
}
