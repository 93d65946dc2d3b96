package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/flemzord/majlis/internal/channel"
	"github.com/flemzord/majlis/pkg/message"
)

// sendOutbound sends an OutboundMessage through the Telegram API, splitting
// text longer than the configured limit. Media blocks are not sent: majlis
// only ever replies with text.
func (t *Telegram) sendOutbound(ctx context.Context, msg message.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.Chat.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat ID %q: %w", msg.Chat.ID, err)
	}

	chunks := channel.SplitMessage(msg, channel.ChunkConfig{
		MaxLength: t.config.MaxMessageLength,
	})
	for _, chunk := range chunks {
		if err := t.sendChunk(ctx, chunk, chatID); err != nil {
			return err
		}
	}
	return nil
}

// sendChunk sends the text of one chunk. A reply rejected for its
// formatting is resent once as plain text.
func (t *Telegram) sendChunk(ctx context.Context, chunk message.OutboundMessage, chatID int64) error {
	text := chunk.TextContent()
	if text == "" {
		return nil
	}

	req := SendMessageRequest{
		ChatID:           chatID,
		Text:             text,
		ParseMode:        resolveParseMode(chunk.Hints, t.config.parseMode()),
		MessageThreadID:  parseOptionalInt(chunk.ThreadID, t.logger),
		ReplyToMessageID: parseOptionalInt(chunk.ReplyToID, t.logger),
	}
	if chunk.Hints != nil {
		req.DisableWebPagePreview = chunk.Hints.DisablePreview
		req.DisableNotification = chunk.Hints.DisableNotification
	}

	_, err := t.client.SendMessage(ctx, req)
	var apiErr *APIError
	if err != nil && req.ParseMode != "" && errors.As(err, &apiErr) && apiErr.IsEntityError() {
		t.logger.Debug("telegram: formatting rejected, resending as plain text", "chat_id", chatID)
		req.ParseMode = ""
		_, err = t.client.SendMessage(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

// resolveParseMode returns the parse mode from hints, or fallback.
func resolveParseMode(hints *message.OutboundHints, fallback string) string {
	if hints != nil && hints.ParseMode != "" {
		if hints.ParseMode == "none" {
			return ""
		}
		return hints.ParseMode
	}
	return fallback
}

// parseOptionalInt converts a string to int, returning 0 for empty strings.
// Logs a warning if the string is non-empty but not a valid integer.
func parseOptionalInt(s string, logger *slog.Logger) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		logger.Warn("telegram: invalid integer value", "value", s, "error", err)
		return 0
	}
	return v
}
