package gateway

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// handleFeed streams the events of one conversation as JSON text frames
// until the client disconnects or the gateway stops.
func (g *Gateway) handleFeed(w http.ResponseWriter, r *http.Request) {
	conv, ok := conversationParam(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.log().Warn("gateway: websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	events, cancel := g.feed.Subscribe(conv)
	defer cancel()

	g.metrics.FeedClientConnected()
	defer g.metrics.FeedClientDisconnected()
	g.log().Debug("gateway: feed subscribed", "conversation", conv)

	// Inbound frames are not expected; CloseRead handles control frames and
	// cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, g.config.FeedWriteTimeout)
			err := wsjson.Write(wctx, conn, ev)
			wcancel()
			if err != nil {
				g.log().Debug("gateway: feed write failed", "conversation", conv, "error", err)
				return
			}
		}
	}
}
