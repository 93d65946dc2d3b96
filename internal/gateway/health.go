package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/majlis/internal/cron"
	"github.com/flemzord/majlis/internal/provider"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string            `json:"status"` // "ok" or "degraded"
	Sessions  int               `json:"sessions"`
	Providers []provider.Status `json:"providers"`
}

// handleHealth returns 200 while at least one provider is available, 503
// when every provider is down.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if g.sessions != nil {
			resp.Sessions = g.sessions.Len()
		}

		code := http.StatusOK
		if g.chain != nil {
			resp.Providers = g.chain.HealthReport()
			available := false
			for _, p := range resp.Providers {
				if p.Available {
					available = true
					continue
				}
				resp.Status = "degraded"
			}
			if !available {
				code = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, code, resp)
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime    int64             `json:"uptime_seconds"`
	Sessions  int               `json:"sessions"`
	Feeds     int               `json:"feed_conversations"`
	Providers []provider.Status `json:"providers"`
	Jobs      []cron.JobInfo    `json:"jobs"`
}

func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:    int64(time.Since(g.startedAt).Seconds()),
			Providers: []provider.Status{},
			Jobs:      []cron.JobInfo{},
		}
		if g.sessions != nil {
			resp.Sessions = g.sessions.Len()
		}
		if g.feed != nil {
			resp.Feeds = g.feed.Conversations()
		}
		if g.chain != nil {
			resp.Providers = g.chain.HealthReport()
		}
		if g.scheduler != nil {
			resp.Jobs = g.scheduler.Jobs()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
