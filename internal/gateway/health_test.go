package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/majlis/internal/cron"
	"github.com/flemzord/majlis/internal/cron/crontest"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/provider/providertest"
	"github.com/flemzord/majlis/internal/router"
	"github.com/flemzord/majlis/internal/telemetry"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	down := provider.HealthConfig{MaxFailures: 1, InitialBackoff: time.Hour}
	tests := []struct {
		name       string
		entries    []provider.ChainEntry
		wantCode   int
		wantStatus string
	}{
		{
			name:       "all healthy",
			entries:    []provider.ChainEntry{{Name: "p1", Provider: providertest.Reply("ok")}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "fallback serving",
			entries: []provider.ChainEntry{
				{Name: "p1", Provider: providertest.Fail(provider.ErrProviderDown), Health: down},
				{Name: "p2", Provider: providertest.Reply("ok")},
			},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name:       "all down",
			entries:    []provider.ChainEntry{{Name: "p1", Provider: providertest.Fail(provider.ErrProviderDown), Health: down}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			chain := newTestChain(t, tt.entries)
			_, _ = chain.Complete(context.Background(), provider.CompletionRequest{})

			store := router.NewSessionStore()
			store.Touch("channel.telegram:1")
			g := &Gateway{sessions: store, chain: chain}

			rr := httptest.NewRecorder()
			g.handleHealth().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rr.Code, tt.wantCode)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantStatus || resp.Sessions != 1 {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestStatusAndMetrics(t *testing.T) {
	t.Parallel()

	sched := cron.NewScheduler(nil)
	if err := sched.RegisterJob(&crontest.MockJob{NameVal: "store_maintenance", ScheduleVal: "@hourly"}); err != nil {
		t.Fatal(err)
	}
	metrics := telemetry.NewMetrics("majlis")
	metrics.ObserveRequest("direct", time.Second)

	_, srv := newTestGateway(t, &fakeAgent{}, func(g *Gateway) {
		g.scheduler = sched
		g.metrics = metrics
		g.startedAt = time.Now()
	})

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if len(status.Jobs) != 1 || status.Jobs[0].Name != "store_maintenance" {
		t.Errorf("jobs = %+v", status.Jobs)
	}

	run, err := http.Post(srv.URL+"/api/jobs/store_maintenance/run", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	run.Body.Close()
	if run.StatusCode != http.StatusOK {
		t.Errorf("run status = %d", run.StatusCode)
	}

	m, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	m.Body.Close()
	if m.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", m.StatusCode)
	}
}
