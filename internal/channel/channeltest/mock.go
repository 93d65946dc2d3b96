// Package channeltest provides test doubles for the channel package.
package channeltest

import (
	"context"
	"sync"

	"github.com/flemzord/majlis/internal/channel"
	"github.com/flemzord/majlis/internal/core"
	"github.com/flemzord/majlis/pkg/message"
)

// MockChannel records sent messages and lets tests push inbound messages
// through Simulate. It also records typing indicators.
type MockChannel struct {
	name string

	mu     sync.Mutex
	inbox  func(msg message.InboundMessage) error
	sent   []message.OutboundMessage
	typing []message.Chat

	// SendFunc, if set, replaces the recording behavior of Send.
	SendFunc func(ctx context.Context, msg message.OutboundMessage) error

	// OnSend, if set, is called after each recorded send.
	OnSend func(msg message.OutboundMessage)
}

// Interface guards.
var (
	_ channel.Channel       = (*MockChannel)(nil)
	_ channel.TypingChannel = (*MockChannel)(nil)
)

// NewMockChannel creates a MockChannel registered as "channel.<name>".
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{name: name}
}

// Name returns the dispatcher name of the channel.
func (m *MockChannel) Name() string { return "channel." + m.name }

// ModuleInfo implements core.Module.
func (m *MockChannel) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID(m.Name()),
		New: func() core.Module { return NewMockChannel(m.name) },
	}
}

// Send records the outbound message, or delegates to SendFunc.
func (m *MockChannel) Send(ctx context.Context, msg message.OutboundMessage) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	onSend := m.OnSend
	m.mu.Unlock()
	if onSend != nil {
		onSend(msg)
	}
	return nil
}

// SendTyping records the chat.
func (m *MockChannel) SendTyping(_ context.Context, chat message.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, chat)
	return nil
}

// SetInbox stores the router callback.
func (m *MockChannel) SetInbox(fn func(msg message.InboundMessage) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = fn
}

// Simulate tags msg with this channel and pushes it into the inbox.
func (m *MockChannel) Simulate(msg message.InboundMessage) error {
	m.mu.Lock()
	inbox := m.inbox
	m.mu.Unlock()
	if inbox == nil {
		return channel.ErrNoInbox
	}
	msg.Channel = m.Name()
	return inbox(msg)
}

// Sent returns a copy of the recorded outbound messages.
func (m *MockChannel) Sent() []message.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]message.OutboundMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTexts returns the text of each recorded message.
func (m *MockChannel) SentTexts() []string {
	sent := m.Sent()
	out := make([]string, len(sent))
	for i := range sent {
		out[i] = sent[i].TextContent()
	}
	return out
}

// TypingCount returns how many typing indicators were sent.
func (m *MockChannel) TypingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.typing)
}
