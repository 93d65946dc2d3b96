package message

// OutboundMessage represents a message to be sent through a channel.
type OutboundMessage struct {
	// Channel names the registered channel that delivers the message.
	Channel   string         `json:"channel"`
	Chat      Chat           `json:"chat"`
	ThreadID  string         `json:"thread_id,omitempty"`
	ReplyToID string         `json:"reply_to_id,omitempty"`
	Blocks    []ContentBlock `json:"blocks"`
	Hints     *OutboundHints `json:"hints,omitempty"`
}

// OutboundHints carries optional delivery hints for channels.
type OutboundHints struct {
	DisablePreview      bool   `json:"disable_preview,omitempty"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
	ParseMode           string `json:"parse_mode,omitempty"`
}

// NewTextMessage creates an outbound message with a single text block.
func NewTextMessage(chat Chat, text string) OutboundMessage {
	return OutboundMessage{
		Chat:   chat,
		Blocks: []ContentBlock{NewTextBlock(text)},
	}
}

// ReplyTo builds a text reply to in on the same channel, chat and thread.
func ReplyTo(in InboundMessage, text string) OutboundMessage {
	out := NewTextMessage(in.Chat, text)
	out.Channel = in.Channel
	out.ThreadID = in.ThreadID
	out.ReplyToID = in.ID
	return out
}

// IsEmpty reports whether m carries neither text nor media.
func (m *OutboundMessage) IsEmpty() bool {
	for _, b := range m.Blocks {
		if b.IsMedia() || (b.Type == BlockText && b.Text != "") {
			return false
		}
	}
	return true
}

// TextContent returns the concatenated text of all text blocks.
func (m *OutboundMessage) TextContent() string {
	return textContent(m.Blocks)
}
