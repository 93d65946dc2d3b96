package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/majlis/internal/agent"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/router"
)

var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Metrics holds the Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	generations       *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	requests          *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
	sandboxRuns       *prometheus.CounterVec
	sandboxLatency    prometheus.Histogram
	memoryFailures    *prometheus.CounterVec
	summaryFailures   prometheus.Counter
	plannerFallbacks  prometheus.Counter
	collabFailures    *prometheus.CounterVec
	discussionErrors  *prometheus.CounterVec
	utterances        prometheus.Counter
	routerDrops       *prometheus.CounterVec
	deliveries        *prometheus.CounterVec
	jobRuns           *prometheus.CounterVec
	jobLatency        *prometheus.HistogramVec
	feedClients       prometheus.Gauge
}

var (
	_ provider.Observer = (*Metrics)(nil)
	_ agent.Observer    = (*Metrics)(nil)
)

// NewMetrics creates the collectors and registers them, together with the
// Go runtime and process collectors, on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "majlis"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Language model calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of language model calls by provider",
			Buckets:   durationBuckets,
		}, []string{"provider"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Handled user requests by route",
		}, []string{"route"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request duration by route",
			Buckets:   durationBuckets,
		}, []string{"route"}),
		sandboxRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sandbox_runs_total",
			Help:      "Sandbox executions by outcome",
		}, []string{"outcome"}),
		sandboxLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sandbox_duration_seconds",
			Help:      "Sandbox execution duration",
			Buckets:   durationBuckets,
		}),
		memoryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_write_failures_total",
			Help:      "Memory writes that failed after their retry",
		}, []string{"op"}),
		summaryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_failures_total",
			Help:      "Background summarizations that failed",
		}),
		plannerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "planner_fallbacks_total",
			Help:      "Plans replaced by the fallback plan",
		}),
		collabFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaboration_failures_total",
			Help:      "Collaborator stages that degraded",
		}, []string{"stage"}),
		discussionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discussion_failures_total",
			Help:      "Discussion loop failures by stage",
		}, []string{"stage"}),
		utterances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discussion_utterances_total",
			Help:      "Messages emitted by ambient discussions",
		}),
		routerDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_dropped_total",
			Help:      "Inbound messages rejected by the router",
		}, []string{"reason"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_deliveries_total",
			Help:      "Outbound messages handed to channels by channel and outcome",
		}, []string{"channel", "outcome"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cron_runs_total",
			Help:      "Scheduled job runs by job and outcome",
		}, []string{"job", "outcome"}),
		jobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cron_duration_seconds",
			Help:      "Scheduled job duration",
			Buckets:   durationBuckets,
		}, []string{"job"}),
		feedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients_connected",
			Help:      "Connected websocket feed clients",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.generations,
		m.generationLatency,
		m.requests,
		m.requestLatency,
		m.sandboxRuns,
		m.sandboxLatency,
		m.memoryFailures,
		m.summaryFailures,
		m.plannerFallbacks,
		m.collabFailures,
		m.discussionErrors,
		m.utterances,
		m.routerDrops,
		m.deliveries,
		m.jobRuns,
		m.jobLatency,
		m.feedClients,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format. A nil
// receiver serves 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveGeneration implements provider.Observer.
func (m *Metrics) ObserveGeneration(name, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(name, outcome).Inc()
	m.generationLatency.WithLabelValues(name).Observe(elapsed.Seconds())
}

// ObserveRequest implements agent.Observer.
func (m *Metrics) ObserveRequest(route string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route).Inc()
	m.requestLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveSandbox implements agent.Observer.
func (m *Metrics) ObserveSandbox(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sandboxRuns.WithLabelValues(outcome).Inc()
	m.sandboxLatency.Observe(elapsed.Seconds())
}

// MemoryFailure matches memory.FailureFunc.
func (m *Metrics) MemoryFailure(op string, _ error) {
	if m == nil {
		return
	}
	m.memoryFailures.WithLabelValues(op).Inc()
}

// SummaryFailure is the summarizer failure hook.
func (m *Metrics) SummaryFailure(error) {
	if m == nil {
		return
	}
	m.summaryFailures.Inc()
}

// PlannerFallback is the planner fallback hook.
func (m *Metrics) PlannerFallback(error) {
	if m == nil {
		return
	}
	m.plannerFallbacks.Inc()
}

// CollaborationFailure is the collaborator failure hook.
func (m *Metrics) CollaborationFailure(stage string, _ error) {
	if m == nil {
		return
	}
	m.collabFailures.WithLabelValues(stage).Inc()
}

// DiscussionFailure is the discussion manager failure hook.
func (m *Metrics) DiscussionFailure(stage string, _ error) {
	if m == nil {
		return
	}
	m.discussionErrors.WithLabelValues(stage).Inc()
}

// DiscussionUtterance counts one emitted discussion message.
func (m *Metrics) DiscussionUtterance() {
	if m == nil {
		return
	}
	m.utterances.Inc()
}

// RouterDrop is the router drop hook.
func (m *Metrics) RouterDrop(reason error) {
	if m == nil {
		return
	}
	label := "other"
	switch {
	case errors.Is(reason, router.ErrInboxFull):
		label = "inbox_full"
	case errors.Is(reason, router.ErrRouterStopped):
		label = "stopped"
	case errors.Is(reason, router.ErrRateLimited):
		label = "rate_limited"
	}
	m.routerDrops.WithLabelValues(label).Inc()
}

// Delivery is the channel dispatcher hook.
func (m *Metrics) Delivery(channel string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.deliveries.WithLabelValues(channel, outcome).Inc()
}

// JobResult is the cron scheduler result hook.
func (m *Metrics) JobResult(name string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.jobRuns.WithLabelValues(name, outcome).Inc()
	m.jobLatency.WithLabelValues(name).Observe(elapsed.Seconds())
}

// FeedClientConnected increments the websocket client gauge.
func (m *Metrics) FeedClientConnected() {
	if m == nil {
		return
	}
	m.feedClients.Inc()
}

// FeedClientDisconnected decrements the websocket client gauge.
func (m *Metrics) FeedClientDisconnected() {
	if m == nil {
		return
	}
	m.feedClients.Dec()
}
