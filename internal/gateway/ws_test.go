package gateway

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestFeed_WebSocket(t *testing.T) {
	t.Parallel()

	g, srv := newTestGateway(t, &fakeAgent{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/conversations/c1"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = conn.CloseNow() }()

	for g.feed.Subscribers("c1") == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("subscriber never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	resp, err := http.Post(srv.URL+"/api/conversations/c1/messages", "application/json", strings.NewReader(`{"text":"سؤال"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	want := []string{FeedUser + ":سؤال", FeedReply + ":plan", FeedReply + ":answer: سؤال"}
	for _, w := range want {
		var ev FeedEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("Read: %v", err)
		}
		if got := ev.Kind + ":" + ev.Text; got != w {
			t.Errorf("event = %q, want %q", got, w)
		}
	}

	g.feed.Close()
	_, _, err = conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Errorf("close status = %v, want going away", websocket.CloseStatus(err))
	}
}
