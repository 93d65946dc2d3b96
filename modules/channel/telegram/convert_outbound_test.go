package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/flemzord/majlis/internal/channel"
	"github.com/flemzord/majlis/pkg/message"
)

func newTestTelegram(t *testing.T, bot *fakeBot) *Telegram {
	t.Helper()
	cfg := Config{Token: testToken, APIURL: bot.srv.URL}
	cfg.defaults()
	return &Telegram{config: cfg, client: bot.client(), logger: discardLogger()}
}

func sentMessages(t *testing.T, bot *fakeBot) []SendMessageRequest {
	t.Helper()
	var out []SendMessageRequest
	for _, raw := range bot.requests("sendMessage") {
		var req SendMessageRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Fatalf("decode sendMessage: %v", err)
		}
		out = append(out, req)
	}
	return out
}

func TestSend_ChunksLongReplies(t *testing.T) {
	t.Parallel()

	bot := newFakeBot(t)
	tg := newTestTelegram(t, bot)

	line := strings.Repeat("ش", 100)
	long := strings.TrimSuffix(strings.Repeat(line+"\n", 50), "\n")

	out := message.NewTextMessage(message.Chat{ID: "42"}, long)
	out.ReplyToID = "7"
	out.ThreadID = "3"
	if err := tg.Send(context.Background(), out); err != nil {
		t.Fatalf("Send: %v", err)
	}

	sent := sentMessages(t, bot)
	if len(sent) != 2 {
		t.Fatalf("sendMessage calls = %d, want 2", len(sent))
	}
	for i, req := range sent {
		if n := utf8.RuneCountInString(req.Text); n > channel.TelegramMaxLength {
			t.Errorf("chunk %d has %d runes", i, n)
		}
		if req.ChatID != 42 || req.MessageThreadID != 3 || req.ParseMode != "Markdown" {
			t.Errorf("chunk %d request = %+v", i, req)
		}
	}
	if sent[0].ReplyToMessageID != 7 || sent[1].ReplyToMessageID != 0 {
		t.Errorf("reply ids = %d, %d; want only the first chunk quoting", sent[0].ReplyToMessageID, sent[1].ReplyToMessageID)
	}
}

func TestSend_FallsBackToPlainText(t *testing.T) {
	t.Parallel()

	bot := newFakeBot(t)
	bot.handle("sendMessage", func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ParseMode != "" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(t, w, APIResponse[bool]{OK: false, ErrorCode: 400, Description: "Bad Request: can't parse entities"})
			return
		}
		writeJSON(t, w, APIResponse[Message]{OK: true, Result: Message{MessageID: 1}})
	})
	tg := newTestTelegram(t, bot)

	if err := tg.Send(context.Background(), message.NewTextMessage(message.Chat{ID: "1"}, "unbalanced *bold")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	sent := sentMessages(t, bot)
	if len(sent) != 2 || sent[1].ParseMode != "" {
		t.Errorf("sent = %+v, want a plain-text retry", sent)
	}
}

func TestSend_Errors(t *testing.T) {
	t.Parallel()

	bot := newFakeBot(t)
	bot.handle("sendMessage", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		writeJSON(t, w, APIResponse[bool]{OK: false, ErrorCode: 403, Description: "Forbidden: bot was blocked by the user"})
	})
	tg := newTestTelegram(t, bot)

	if err := tg.Send(context.Background(), message.NewTextMessage(message.Chat{ID: "abc"}, "x")); err == nil {
		t.Error("expected error for non-numeric chat id")
	}
	if err := tg.Send(context.Background(), message.NewTextMessage(message.Chat{ID: "1"}, "x")); err == nil {
		t.Error("expected error when the bot is blocked")
	}
	if got := len(sentMessages(t, bot)); got != 1 {
		t.Errorf("sendMessage calls = %d, want 1 (no plain-text retry on 403)", got)
	}
}

func TestSend_EmptyTextIsNoop(t *testing.T) {
	t.Parallel()

	bot := newFakeBot(t)
	tg := newTestTelegram(t, bot)
	out := message.OutboundMessage{Chat: message.Chat{ID: "1"}, Blocks: []message.ContentBlock{message.NewImageBlock([]byte{1}, "image/png", "")}}
	if err := tg.Send(context.Background(), out); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(bot.requests("sendMessage")) != 0 {
		t.Error("media-only message must not call sendMessage")
	}
}

func TestResolveParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hints *message.OutboundHints
		want  string
	}{
		{nil, "Markdown"},
		{&message.OutboundHints{}, "Markdown"},
		{&message.OutboundHints{ParseMode: "HTML"}, "HTML"},
		{&message.OutboundHints{ParseMode: "none"}, ""},
	}
	for _, tt := range tests {
		if got := resolveParseMode(tt.hints, "Markdown"); got != tt.want {
			t.Errorf("resolveParseMode(%+v) = %q, want %q", tt.hints, got, tt.want)
		}
	}
}

func TestSendTyping(t *testing.T) {
	t.Parallel()

	bot := newFakeBot(t)
	tg := newTestTelegram(t, bot)
	if err := tg.SendTyping(context.Background(), message.Chat{ID: "99"}); err != nil {
		t.Fatalf("SendTyping: %v", err)
	}
	reqs := bot.requests("sendChatAction")
	if len(reqs) != 1 || !strings.Contains(string(reqs[0]), `"action":"typing"`) {
		t.Errorf("sendChatAction = %q", reqs)
	}
	if err := tg.SendTyping(context.Background(), message.Chat{ID: "x"}); err == nil {
		t.Error("expected error for invalid chat id")
	}
}
