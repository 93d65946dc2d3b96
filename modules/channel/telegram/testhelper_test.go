package telegram

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const testToken = "123456:TEST-token_abc"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

// fakeBot is a minimal Bot API server. Methods without a handler succeed:
// sendMessage returns a message, everything else returns true. Every request body is recorded per method.
type fakeBot struct {
	t        *testing.T
	srv      *httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	files    map[string][]byte
	calls    map[string][][]byte
}

func newFakeBot(t *testing.T) *fakeBot {
	t.Helper()
	b := &fakeBot{
		t:        t,
		handlers: make(map[string]http.HandlerFunc),
		files:    make(map[string][]byte),
		calls:    make(map[string][][]byte),
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

// handle registers a handler for a Bot API method. Call before use.
func (b *fakeBot) handle(method string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[method] = h
}

// file serves data at /file/bot<token>/<path>.
func (b *fakeBot) file(path string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[path] = data
}

func (b *fakeBot) serve(w http.ResponseWriter, r *http.Request) {
	if rest, ok := strings.CutPrefix(r.URL.Path, "/file/bot"+testToken+"/"); ok {
		b.mu.Lock()
		data, found := b.files[rest]
		b.mu.Unlock()
		if !found {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
		return
	}

	method, ok := strings.CutPrefix(r.URL.Path, "/bot"+testToken+"/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.calls[method] = append(b.calls[method], body)
	h := b.handlers[method]
	b.mu.Unlock()

	if h == nil {
		if method == "sendMessage" {
			writeJSON(b.t, w, APIResponse[Message]{OK: true, Result: Message{MessageID: len(b.requests(method))}})
			return
		}
		writeJSON(b.t, w, APIResponse[bool]{OK: true, Result: true})
		return
	}
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	h(w, r)
}

// requests returns the recorded bodies for method.
func (b *fakeBot) requests(method string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.calls[method]...)
}

func (b *fakeBot) client() *Client {
	return NewClient(testToken, b.srv.URL)
}
