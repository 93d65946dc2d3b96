package memory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// FailureFunc is notified when a write fails after its retry.
type FailureFunc func(op string, err error)

// RetryingStore retries each write once after a short pause. Reads pass
// through unchanged. Persistent write failures are logged and returned.
type RetryingStore struct {
	Store
	logger    *slog.Logger
	pause     time.Duration
	onFailure FailureFunc
}

var _ Store = (*RetryingStore)(nil)

// RetryOption configures a RetryingStore.
type RetryOption func(*RetryingStore)

// WithRetryPause sets the pause between the first attempt and the retry.
func WithRetryPause(d time.Duration) RetryOption {
	return func(r *RetryingStore) { r.pause = d }
}

// WithFailureFunc registers a callback for writes that failed twice.
func WithFailureFunc(fn FailureFunc) RetryOption {
	return func(r *RetryingStore) { r.onFailure = fn }
}

// WithRetry wraps store so that writes are retried once.
func WithRetry(store Store, logger *slog.Logger, opts ...RetryOption) *RetryingStore {
	if logger == nil {
		logger = slog.Default()
	}
	r := &RetryingStore{Store: store, logger: logger, pause: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func retryWrite[T any](ctx context.Context, r *RetryingStore, op, conv string, fn func() (T, error)) (T, error) {
	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && (errors.Is(err, ErrEmptyConversation) || ctx.Err() != nil) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(r.pause)),
		backoff.WithMaxTries(2),
	)
	if err != nil {
		r.logger.Error("memory: write failed", "op", op, "conversation", conv, "error", err)
		if r.onFailure != nil {
			r.onFailure(op, err)
		}
	}
	return v, err
}

// AppendMessage implements Store.
func (r *RetryingStore) AppendMessage(ctx context.Context, conv string, msg Message) (int64, error) {
	return retryWrite(ctx, r, "append_message", conv, func() (int64, error) {
		return r.Store.AppendMessage(ctx, conv, msg)
	})
}

// AppendSummary implements Store.
func (r *RetryingStore) AppendSummary(ctx context.Context, conv string, s Summary) error {
	_, err := retryWrite(ctx, r, "append_summary", conv, func() (struct{}, error) {
		return struct{}{}, r.Store.AppendSummary(ctx, conv, s)
	})
	return err
}

// AppendLesson implements Store.
func (r *RetryingStore) AppendLesson(ctx context.Context, conv string, l Lesson) error {
	_, err := retryWrite(ctx, r, "append_lesson", conv, func() (struct{}, error) {
		return struct{}{}, r.Store.AppendLesson(ctx, conv, l)
	})
	return err
}

// AddDocument implements Store.
func (r *RetryingStore) AddDocument(ctx context.Context, conv string, doc Document) (bool, error) {
	return retryWrite(ctx, r, "add_document", conv, func() (bool, error) {
		return r.Store.AddDocument(ctx, conv, doc)
	})
}

// Clear implements Store.
func (r *RetryingStore) Clear(ctx context.Context, conv string) error {
	_, err := retryWrite(ctx, r, "clear", conv, func() (struct{}, error) {
		return struct{}{}, r.Store.Clear(ctx, conv)
	})
	return err
}
