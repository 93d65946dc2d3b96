package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(g.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth())
	r.Get("/status", g.handleStatus())
	r.Handle("/metrics", g.metrics.Handler())
	r.Get("/ws/conversations/{id}", g.handleFeed)

	r.Route("/api", func(r chi.Router) {
		r.Get("/modules", g.handleListModules())
		r.Get("/sessions", g.handleListSessions())
		r.Get("/jobs", g.handleListJobs())
		r.Post("/jobs/{name}/run", g.handleRunJob())

		r.Route("/conversations/{id}", func(r chi.Router) {
			r.Use(g.requireAgent)
			r.Post("/messages", g.handleMessage())
			r.Post("/voice", g.handleVoice())
			r.Post("/images", g.handleImage())
			r.Post("/documents", g.handleDocument())
			r.Get("/knowledge", g.handleKnowledge())
			r.Get("/status", g.handleConversationStatus())
			r.Post("/discussion", g.handleStartDiscussion())
			r.Delete("/discussion", g.handleStopDiscussion())
			r.Delete("/memory", g.handleClearMemory())
		})
	})

	return r
}

// requestID propagates or assigns an X-Request-ID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		g.log().LogAttrs(r.Context(), slog.LevelDebug, "gateway: request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", r.Header.Get(RequestIDHeader)),
		)
	})
}

func (g *Gateway) requireAgent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.agent == nil {
			writeError(w, http.StatusServiceUnavailable, "orchestrator not available")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) log() *slog.Logger {
	if g.logger == nil {
		return slog.Default()
	}
	return g.logger
}
