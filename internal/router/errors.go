// Package router serializes inbound chat events per conversation and
// dispatches them to the orchestrator through a bounded inbox and a
// worker pool.
package router

import "errors"

// Sentinel errors for router operations.
var (
	// ErrInboxFull indicates the inbox is at capacity and the message was
	// dropped.
	ErrInboxFull = errors.New("router: inbox full, message dropped")

	// ErrRateLimited indicates the conversation exceeded
	// messages_per_minute and the message was dropped.
	ErrRateLimited = errors.New("router: conversation rate limited, message dropped")

	// ErrRouterStopped indicates the router no longer accepts messages.
	ErrRouterStopped = errors.New("router: stopped")

	// ErrNoHandler indicates no handler has been configured.
	ErrNoHandler = errors.New("router: no handler configured")

	// ErrNoResponseSender indicates no response sender has been configured.
	ErrNoResponseSender = errors.New("router: no response sender configured")

	// ErrBadConversation indicates a conversation key that does not name a
	// channel and a chat.
	ErrBadConversation = errors.New("router: malformed conversation key")
)
