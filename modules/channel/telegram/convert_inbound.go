package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/flemzord/majlis/pkg/message"
)

const fileIDPrefix = "tg://file_id/"

// errNoContent marks updates carrying nothing majlis can handle (stickers,
// locations, service messages).
var errNoContent = errors.New("telegram: update has no supported content")

// fileIDRef returns a reference URI for a Telegram file_id. It is resolved
// into bytes by downloadMedia before the message reaches the inbox.
func fileIDRef(fileID string) string {
	return fileIDPrefix + fileID
}

// convertInbound transforms a Telegram Update into a platform-agnostic InboundMessage.
func convertInbound(update *Update, channelName string) (message.InboundMessage, error) {
	msg := extractMessage(update)
	if msg == nil {
		return message.InboundMessage{}, fmt.Errorf("telegram: update %d contains no message", update.UpdateID)
	}

	inbound := message.InboundMessage{
		ID:        strconv.Itoa(msg.MessageID),
		Timestamp: time.Unix(int64(msg.Date), 0),
		Channel:   channelName,
		Sender:    convertSender(msg.From),
		Chat:      convertChat(msg.Chat),
	}
	if msg.MessageThreadID != 0 {
		inbound.ThreadID = strconv.Itoa(msg.MessageThreadID)
	}
	if msg.ReplyToMessage != nil {
		inbound.ReplyToID = strconv.Itoa(msg.ReplyToMessage.MessageID)
	}

	inbound.Blocks = convertBlocks(msg)
	if len(inbound.Blocks) == 0 {
		return message.InboundMessage{}, errNoContent
	}
	return inbound, nil
}

// extractMessage returns the actual message from an Update.
func extractMessage(update *Update) *Message {
	if update.Message != nil {
		return update.Message
	}
	return update.EditedMessage
}

// convertSender maps a Telegram User to a platform-agnostic Sender.
func convertSender(user *User) message.Sender {
	if user == nil {
		return message.Sender{}
	}
	displayName := user.FirstName
	if user.LastName != "" {
		displayName += " " + user.LastName
	}
	return message.Sender{
		ID:          strconv.FormatInt(user.ID, 10),
		Username:    user.Username,
		DisplayName: displayName,
	}
}

// convertChat maps a Telegram Chat to a platform-agnostic Chat.
func convertChat(chat Chat) message.Chat {
	return message.Chat{
		ID:    strconv.FormatInt(chat.ID, 10),
		Type:  mapChatType(chat.Type),
		Title: chat.Title,
	}
}

// mapChatType converts Telegram chat type strings to message.ChatType.
// Channels are treated as groups.
func mapChatType(tgType string) message.ChatType {
	if tgType == "private" {
		return message.ChatDM
	}
	return message.ChatGroup
}

// convertBlocks builds content blocks from a Telegram message. Media blocks
// carry a tg://file_id/ reference in URL and no data yet.
func convertBlocks(msg *Message) []message.ContentBlock {
	var blocks []message.ContentBlock

	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		b := message.NewImageBlock(nil, "", msg.Caption)
		b.URL = fileIDRef(largest.FileID)
		blocks = append(blocks, b)
	case msg.Voice != nil:
		b := message.NewAudioBlock(nil, msg.Voice.MIMEType, true)
		b.URL = fileIDRef(msg.Voice.FileID)
		blocks = append(blocks, b)
	case msg.Audio != nil:
		b := message.NewAudioBlock(nil, msg.Audio.MIMEType, false)
		b.URL = fileIDRef(msg.Audio.FileID)
		b.FileName = msg.Audio.FileName
		blocks = append(blocks, b)
	case msg.Document != nil:
		b := message.NewFileBlock(nil, msg.Document.MIMEType, msg.Document.FileName)
		b.URL = fileIDRef(msg.Document.FileID)
		blocks = append(blocks, b)
	}

	if msg.Caption != "" {
		blocks = append(blocks, message.NewTextBlock(msg.Caption))
	}
	if len(blocks) == 0 && msg.Text != "" {
		blocks = append(blocks, message.NewTextBlock(msg.Text))
	}
	return blocks
}
