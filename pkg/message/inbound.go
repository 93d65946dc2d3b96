package message

import "time"

// InboundMessage represents a message received from a channel.
type InboundMessage struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Channel   string         `json:"channel"`
	Sender    Sender         `json:"sender"`
	Chat      Chat           `json:"chat"`
	ThreadID  string         `json:"thread_id,omitempty"`
	ReplyToID string         `json:"reply_to_id,omitempty"`
	Blocks    []ContentBlock `json:"blocks"`
}

// TextContent returns the concatenated text of all text blocks.
func (m *InboundMessage) TextContent() string {
	return textContent(m.Blocks)
}

// Media returns the first media block, if any.
func (m *InboundMessage) Media() (ContentBlock, bool) {
	return firstMedia(m.Blocks)
}

// IsGroup reports whether the message was sent in a group chat.
func (m *InboundMessage) IsGroup() bool {
	return m.Chat.IsGroup()
}
