// Package channel defines the bridge between messaging platforms and the
// router: the Channel interface, outbound dispatch, command parsing,
// typing indicators and message chunking.
package channel

import (
	"context"
	"time"

	"github.com/flemzord/majlis/internal/core"
	"github.com/flemzord/majlis/pkg/message"
)

// Channel is the bridge between a messaging platform and the router.
//
// A channel receives messages from its platform, downloads their media and
// pushes them to the router via the inbox callback. It receives outbound
// messages from the router and the discussion loop via Send.
type Channel interface {
	core.Module

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg message.OutboundMessage) error

	// SetInbox gives the channel a function to push inbound messages to the
	// router. It is called during wiring, before Start.
	SetInbox(fn func(msg message.InboundMessage) error)
}

// TypingChannel is implemented by channels that can show a typing
// indicator while a request is processed.
type TypingChannel interface {
	Channel

	// SendTyping sends a single typing indicator to the platform.
	SendTyping(ctx context.Context, chat message.Chat) error
}

// DefaultTypingInterval matches the lifetime of a Telegram chat action.
const DefaultTypingInterval = 4 * time.Second

// StartTypingLoop sends typing indicators every interval until ctx is done.
// A non-positive interval uses DefaultTypingInterval.
func StartTypingLoop(ctx context.Context, ch TypingChannel, chat message.Chat, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTypingInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		_ = ch.SendTyping(ctx, chat)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = ch.SendTyping(ctx, chat)
			}
		}
	}()
}
