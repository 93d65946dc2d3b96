package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/majlis/internal/agent"
	"github.com/flemzord/majlis/internal/core"
	"github.com/flemzord/majlis/internal/cron"
	"github.com/flemzord/majlis/internal/router"
)

const maxConversationLen = 256

// MessageRequest is the body of POST /api/conversations/{id}/messages.
type MessageRequest struct {
	Text string `json:"text"`
}

// ReplyResponse is returned by the conversation endpoints that produce an
// answer.
type ReplyResponse struct {
	Reply    string   `json:"reply"`
	Route    string   `json:"route,omitempty"`
	Persona  string   `json:"persona,omitempty"`
	Steps    int      `json:"steps,omitempty"`
	Progress []string `json:"progress,omitempty"`
}

// TextResponse wraps the text of a control entry point.
type TextResponse struct {
	Text string `json:"text"`
}

// IngestResponse is returned by POST /api/conversations/{id}/documents.
type IngestResponse struct {
	Title   string `json:"title"`
	Added   bool   `json:"added"`
	Message string `json:"message"`
}

// conversationParam extracts and unescapes the {id} segment. Conversation
// keys look like "channel.telegram:42" or any caller-chosen string.
func conversationParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "id")
	conv, err := url.PathUnescape(raw)
	if err != nil || conv == "" || len(conv) > maxConversationLen {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return "", false
	}
	return conv, true
}

// serialize runs fn while holding the conversation lane.
func (g *Gateway) serialize(conv string, fn func()) {
	g.lanes.Acquire(conv)
	defer g.lanes.Release(conv)
	fn()
}

func (g *Gateway) publish(conv, kind, speaker, text string) {
	if g.feed == nil || text == "" {
		return
	}
	g.feed.Publish(FeedEvent{Conversation: conv, Kind: kind, Speaker: speaker, Text: text})
}

func (g *Gateway) handleMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, ok := conversationParam(w, r)
		if !ok {
			return
		}
		var req MessageRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		var (
			mu       sync.Mutex
			progress []string
			resp     agent.Response
		)
		g.publish(conv, FeedUser, "", req.Text)
		g.serialize(conv, func() {
			resp = g.agent.HandleText(r.Context(), agent.Request{
				Conversation: conv,
				Text:         req.Text,
				Progress: func(_ context.Context, text string) {
					mu.Lock()
					progress = append(progress, text)
					mu.Unlock()
					g.publish(conv, FeedReply, "", text)
				},
			})
		})
		g.publish(conv, FeedReply, resp.Persona, resp.Text)

		mu.Lock()
		defer mu.Unlock()
		writeJSON(w, http.StatusOK, ReplyResponse{
			Reply:    resp.Text,
			Route:    string(resp.Route),
			Persona:  resp.Persona,
			Steps:    resp.Steps,
			Progress: progress,
		})
	}
}

func (g *Gateway) handleVoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, ok := conversationParam(w, r)
		if !ok {
			return
		}
		audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes))
		if err != nil {
			writeBodyError(w, err)
			return
		}
		if len(audio) == 0 {
			writeError(w, http.StatusBadRequest, "empty audio body")
			return
		}

		var resp agent.Response
		g.serialize(conv, func() {
			resp = g.agent.HandleVoice(r.Context(), conv, audio, contentType(r), nil)
		})
		g.publish(conv, FeedReply, resp.Persona, resp.Text)
		writeJSON(w, http.StatusOK, ReplyResponse{Reply: resp.Text, Route: string(resp.Route), Persona: resp.Persona, Steps: resp.Steps})
	}
}

func (g *Gateway) handleImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, ok := conversationParam(w, r)
		if !ok {
			return
		}
		file, ok := g.readUpload(w, r)
		if !ok {
			return
		}

		var resp agent.Response
		g.serialize(conv, func() {
			resp = g.agent.HandleImage(r.Context(), conv, file.data, file.mimeType, r.FormValue("caption"))
		})
		g.publish(conv, FeedReply, resp.Persona, resp.Text)
		writeJSON(w, http.StatusOK, ReplyResponse{Reply: resp.Text, Persona: resp.Persona})
	}
}

func (g *Gateway) handleDocument() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, ok := conversationParam(w, r)
		if !ok {
			return
		}
		file, ok := g.readUpload(w, r)
		if !ok {
			return
		}

		var res agent.IngestResult
		g.serialize(conv, func() {
			res = g.agent.HandleDocumentIngest(r.Context(), conv, file.name, file.mimeType, file.data)
		})
		writeJSON(w, http.StatusOK, IngestResponse{Title: res.Title, Added: res.Added, Message: res.Text})
	}
}

func (g *Gateway) handleKnowledge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if conv, ok := conversationParam(w, r); ok {
			writeJSON(w, http.StatusOK, TextResponse{Text: g.agent.Knowledge(r.Context(), conv)})
		}
	}
}

func (g *Gateway) handleConversationStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if conv, ok := conversationParam(w, r); ok {
			writeJSON(w, http.StatusOK, TextResponse{Text: g.agent.Status(r.Context(), conv)})
		}
	}
}

func (g *Gateway) handleStartDiscussion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if conv, ok := conversationParam(w, r); ok {
			writeJSON(w, http.StatusOK, TextResponse{Text: g.agent.StartDiscussion(conv)})
		}
	}
}

func (g *Gateway) handleStopDiscussion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if conv, ok := conversationParam(w, r); ok {
			writeJSON(w, http.StatusOK, TextResponse{Text: g.agent.StopDiscussion(conv)})
		}
	}
}

func (g *Gateway) handleClearMemory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, ok := conversationParam(w, r)
		if !ok {
			return
		}
		var text string
		g.serialize(conv, func() { text = g.agent.ClearMemory(r.Context(), conv) })
		writeJSON(w, http.StatusOK, TextResponse{Text: text})
	}
}

// sessionJSON is a serializable router session.
type sessionJSON struct {
	router.Session
	Channel  string `json:"channel,omitempty"`
	ChatID   string `json:"chat_id,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
}

func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := []sessionJSON{}
		if g.sessions != nil {
			for _, s := range g.sessions.Snapshot() {
				js := sessionJSON{Session: s}
				if key, err := router.ParseConversation(s.Conversation); err == nil {
					js.Channel, js.ChatID, js.ThreadID = key.Channel, key.ChatID, key.ThreadID
				}
				out = append(out, js)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		jobs := []cron.JobInfo{}
		if g.scheduler != nil {
			jobs = g.scheduler.Jobs()
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

func (g *Gateway) handleRunJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.scheduler == nil {
			writeError(w, http.StatusServiceUnavailable, "scheduler not available")
			return
		}
		name := chi.URLParam(r, "name")
		err := g.scheduler.RunNow(name)
		switch {
		case errors.Is(err, cron.ErrUnknownJob):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, cron.ErrJobBusy):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": "completed", "job": name})
		}
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleListModules lists all compiled modules.
func (g *Gateway) handleListModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type upload struct {
	name     string
	mimeType string
	data     []byte
}

// readUpload accepts a multipart "file" field, or a raw body named by the
// "name" query parameter.
func (g *Gateway) readUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(g.config.MaxBodyBytes); err != nil {
			writeBodyError(w, err)
			return upload{}, false
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file field")
			return upload{}, false
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			writeBodyError(w, err)
			return upload{}, false
		}
		return upload{name: filepath.Base(hdr.Filename), mimeType: hdr.Header.Get("Content-Type"), data: data}, true
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeBodyError(w, err)
		return upload{}, false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return upload{}, false
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload"
	}
	return upload{name: filepath.Base(name), mimeType: mediaType, data: data}, true
}

func contentType(r *http.Request) string {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid body")
}
