package channel

import "errors"

var (
	// ErrNoChannel is returned by Dispatcher.Send when msg.Channel names no
	// registered channel, which is the case for gateway conversations.
	ErrNoChannel = errors.New("channel: no such channel")

	// ErrDuplicateChannel is returned when two loaded modules share an ID.
	ErrDuplicateChannel = errors.New("channel: already registered")

	// ErrEmptyMessage is returned for an outbound message with neither text
	// nor media.
	ErrEmptyMessage = errors.New("channel: empty outbound message")

	// ErrNoInbox is returned when a channel receives a message before the
	// router set its inbox.
	ErrNoInbox = errors.New("channel: inbox not set")
)
