package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/majlis/pkg/message"
)

// SessionKey identifies a conversation by channel, chat and thread.
type SessionKey struct {
	Channel  string
	ChatID   string
	ThreadID string
}

// SessionKeyFromMessage derives the key of msg.
func SessionKeyFromMessage(msg message.InboundMessage) SessionKey {
	return SessionKey{
		Channel:  msg.Channel,
		ChatID:   msg.Chat.ID,
		ThreadID: msg.ThreadID,
	}
}

// Conversation renders the key as the conversation id scoping memory and
// discussion state: "<channel>:<chat>" or "<channel>:<chat>#<thread>".
func (k SessionKey) Conversation() string {
	id := k.Channel + ":" + k.ChatID
	if k.ThreadID != "" {
		id += "#" + k.ThreadID
	}
	return id
}

// ParseConversation is the inverse of SessionKey.Conversation.
func ParseConversation(conversation string) (SessionKey, error) {
	ch, rest, ok := strings.Cut(conversation, ":")
	if !ok || ch == "" || rest == "" {
		return SessionKey{}, fmt.Errorf("%w: %q", ErrBadConversation, conversation)
	}
	chat, thread, _ := strings.Cut(rest, "#")
	if chat == "" {
		return SessionKey{}, fmt.Errorf("%w: %q", ErrBadConversation, conversation)
	}
	return SessionKey{Channel: ch, ChatID: chat, ThreadID: thread}, nil
}

// Session tracks the activity of one conversation.
type Session struct {
	ID           string    `json:"id"`
	Conversation string    `json:"conversation"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	Messages     int       `json:"messages"`
}
