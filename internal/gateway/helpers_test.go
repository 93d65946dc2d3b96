package gateway

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/flemzord/majlis/internal/agent"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/router"
)

// fakeAgent records calls and answers with canned texts.
type fakeAgent struct {
	mu    sync.Mutex
	calls []string
	last  []byte
}

var _ router.Agent = (*fakeAgent)(nil)

func (a *fakeAgent) record(call string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call)
}

func (a *fakeAgent) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *fakeAgent) HandleText(ctx context.Context, req agent.Request) agent.Response {
	a.record("text " + req.Conversation + " " + req.Text)
	if req.Progress != nil {
		req.Progress(ctx, "plan")
	}
	return agent.Response{Text: "answer: " + req.Text, Route: agent.RouteDirect, Persona: "أحمد"}
}

func (a *fakeAgent) HandleVoice(_ context.Context, conv string, audio []byte, mimeType string, _ agent.ProgressFunc) agent.Response {
	a.record("voice " + conv + " " + mimeType)
	return agent.Response{Text: "heard " + string(audio)}
}

func (a *fakeAgent) HandleImage(_ context.Context, conv string, image []byte, mimeType, caption string) agent.Response {
	a.record("image " + conv + " " + mimeType + " " + caption)
	return agent.Response{Text: "seen"}
}

func (a *fakeAgent) HandleDocumentIngest(_ context.Context, conv, name, mimeType string, data []byte) agent.IngestResult {
	a.record("document " + conv + " " + name)
	a.mu.Lock()
	a.last = data
	a.mu.Unlock()
	return agent.IngestResult{Title: name, Added: true, Text: "added " + name}
}

func (a *fakeAgent) StartDiscussion(conv string) string { a.record("start " + conv); return "started" }
func (a *fakeAgent) StopDiscussion(conv string) string  { a.record("stop " + conv); return "stopped" }

func (a *fakeAgent) ClearMemory(_ context.Context, conv string) string {
	a.record("clear " + conv)
	return "cleared"
}

func (a *fakeAgent) Status(_ context.Context, conv string) string {
	a.record("status " + conv)
	return "running"
}

func (a *fakeAgent) Knowledge(_ context.Context, conv string) string {
	a.record("knowledge " + conv)
	return "nothing yet"
}

func (a *fakeAgent) Help() string { return "help" }

// newTestGateway builds a Gateway without the module lifecycle.
func newTestGateway(t *testing.T, a router.Agent, opts ...func(*Gateway)) (*Gateway, *httptest.Server) {
	t.Helper()
	g := &Gateway{
		feed:     NewFeed(8),
		lanes:    router.NewLaneLock(),
		agent:    a,
		sessions: router.NewSessionStore(),
	}
	g.config.defaults()
	for _, opt := range opts {
		opt(g)
	}
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(func() {
		g.feed.Close()
		srv.Close()
	})
	return g, srv
}

// newTestChain creates a Chain for testing.
func newTestChain(t *testing.T, entries []provider.ChainEntry) *provider.Chain {
	t.Helper()
	chain, err := provider.NewChain(entries)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	return chain
}
