package router

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/flemzord/majlis/internal/agent"
	"github.com/flemzord/majlis/pkg/message"
)

type fakeAgent struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeAgent) record(call string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return call
}

func (f *fakeAgent) HandleText(ctx context.Context, req agent.Request) agent.Response {
	if req.Progress != nil {
		req.Progress(ctx, "progress")
	}
	return agent.Response{Text: f.record("text:" + req.Conversation + ":" + req.Text)}
}

func (f *fakeAgent) HandleVoice(_ context.Context, _ string, audio []byte, mimeType string, _ agent.ProgressFunc) agent.Response {
	return agent.Response{Text: f.record("voice:" + mimeType + ":" + string(audio))}
}

func (f *fakeAgent) HandleImage(_ context.Context, _ string, _ []byte, _ string, caption string) agent.Response {
	return agent.Response{Text: f.record("image:" + caption)}
}

func (f *fakeAgent) HandleDocumentIngest(_ context.Context, _ string, name, _ string, _ []byte) agent.IngestResult {
	return agent.IngestResult{Text: f.record("doc:" + name)}
}

func (f *fakeAgent) StartDiscussion(string) string              { return f.record("start") }
func (f *fakeAgent) StopDiscussion(string) string               { return f.record("stop") }
func (f *fakeAgent) ClearMemory(context.Context, string) string { return f.record("clear") }
func (f *fakeAgent) Status(context.Context, string) string      { return f.record("status") }
func (f *fakeAgent) Knowledge(context.Context, string) string   { return f.record("knowledge") }
func (f *fakeAgent) Help() string                               { return f.record("help") }

func TestAgentHandler_Dispatch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		blocks []message.ContentBlock
		want   []string
	}{
		{"text", []message.ContentBlock{message.NewTextBlock("سؤال")}, []string{"progress", "text:c:سؤال"}},
		{"start", []message.ContentBlock{message.NewTextBlock("/start")}, []string{"start"}},
		{"stop", []message.ContentBlock{message.NewTextBlock("/stop@bot")}, []string{"stop"}},
		{"clear", []message.ContentBlock{message.NewTextBlock("/clear")}, []string{"clear"}},
		{"status", []message.ContentBlock{message.NewTextBlock("/status")}, []string{"status"}},
		{"knowledge", []message.ContentBlock{message.NewTextBlock("/knowledge")}, []string{"knowledge"}},
		{"unknown command", []message.ContentBlock{message.NewTextBlock("/dance")}, []string{"help"}},
		{"voice", []message.ContentBlock{message.NewAudioBlock([]byte("ogg"), "audio/ogg", true)}, []string{"voice:audio/ogg:ogg"}},
		{"image caption", []message.ContentBlock{message.NewImageBlock([]byte{1}, "image/jpeg", "ما هذا؟")}, []string{"image:ما هذا؟"}},
		{"image text fallback", []message.ContentBlock{message.NewTextBlock("صف"), message.NewImageBlock([]byte{1}, "image/jpeg", "")}, []string{"image:صف"}},
		{"document", []message.ContentBlock{message.NewFileBlock([]byte("x"), "text/plain", "a.txt")}, []string{"doc:a.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewAgentHandler(&fakeAgent{}, nil)
			var replies []string
			reply := func(_ context.Context, text string) { replies = append(replies, text) }

			h.Handle(context.Background(), "c", message.InboundMessage{Blocks: tt.blocks}, reply)
			if !slices.Equal(replies, tt.want) {
				t.Errorf("replies = %q, want %q", replies, tt.want)
			}
		})
	}
}
