package ctxengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/majlis/internal/memory"
	"github.com/flemzord/majlis/internal/provider"
)

// ErrNothingToSummarize is returned when the conversation has no messages.
var ErrNothingToSummarize = errors.New("ctxengine: nothing to summarize")

const summarySystem = "أنت مساعد يلخّص المحادثات بدقة وإيجاز."

// SummarizerOption configures a Summarizer.
type SummarizerOption func(*Summarizer)

// WithSummaryFailureHook registers fn to be called whenever a background
// summarization fails.
func WithSummaryFailureHook(fn func(error)) SummarizerOption {
	return func(s *Summarizer) { s.onFailure = fn }
}

// Summarizer condenses the message log into the summary layer every
// Threshold messages. Background runs are supervised: panics are recovered,
// every run has its own timeout and failures are logged, never returned.
type Summarizer struct {
	store     memory.Store
	provider  provider.Provider
	cfg       SummarizerConfig
	logger    *slog.Logger
	onFailure func(error)

	wg sync.WaitGroup
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(store memory.Store, p provider.Provider, cfg SummarizerConfig, logger *slog.Logger, opts ...SummarizerOption) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Summarizer{
		store:    store,
		provider: p,
		cfg:      cfg.withDefaults(),
		logger:   logger.With("component", "summarizer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the effective summary interval.
func (s *Summarizer) Threshold() int { return s.cfg.Threshold }

// Observe is called after each message append with the conversation's
// running count. When count is a multiple of the threshold a background
// summarization starts and Observe returns true. It never blocks.
func (s *Summarizer) Observe(conversation string, count int64) bool {
	if count <= 0 || count%int64(s.cfg.Threshold) != 0 {
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.fail(conversation, fmt.Errorf("ctxengine: summarizer panic: %v", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		if err := s.Summarize(ctx, conversation); err != nil {
			s.fail(conversation, err)
		}
	}()
	return true
}

func (s *Summarizer) fail(conversation string, err error) {
	s.logger.Warn("ctxengine: summary failed", "conversation", conversation, "error", err)
	if s.onFailure != nil {
		s.onFailure(err)
	}
}

// Summarize condenses the last Threshold messages into a 3–5 sentence
// summary and appends it. Blank model output stores nothing.
func (s *Summarizer) Summarize(ctx context.Context, conversation string) error {
	msgs, err := s.store.RecentMessages(ctx, conversation, s.cfg.Threshold)
	if err != nil {
		return fmt.Errorf("ctxengine: read messages: %w", err)
	}
	if len(msgs) == 0 {
		return ErrNothingToSummarize
	}

	var b strings.Builder
	b.WriteString("لخّص المحادثة التالية في ثلاث إلى خمس جمل، مع الحفاظ على القرارات والحقائق المهمة:\n\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	text, err := provider.Generate(ctx, s.provider, b.String(), summarySystem, s.cfg.MaxTokens, 0.3)
	if err != nil {
		return fmt.Errorf("ctxengine: generate summary: %w", err)
	}

	if err := s.store.AppendSummary(ctx, conversation, memory.Summary{Text: text, CreatedAt: time.Now()}); err != nil {
		return fmt.Errorf("ctxengine: store summary: %w", err)
	}
	s.logger.Debug("ctxengine: summary stored", "conversation", conversation, "messages", len(msgs))
	return nil
}

// Wait blocks until in-flight summaries finish or ctx is done.
func (s *Summarizer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
