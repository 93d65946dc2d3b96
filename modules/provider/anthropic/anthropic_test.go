package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/majlis/internal/core"
	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/security"
)

const okReply = `{
	"id": "msg_1",
	"type": "message",
	"role": "assistant",
	"content": [{"type": "text", "text": "Hello"}, {"type": "text", "text": " there"}],
	"model": "claude-sonnet-4-5-20250929",
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 10, "output_tokens": 5}
}`

func newTestProvider(baseURL string) *Anthropic {
	cfg := Config{APIKey: "sk-ant-test", BaseURL: baseURL}
	cfg.defaults()
	return &Anthropic{config: cfg, client: newClient(cfg), logger: slog.New(slog.DiscardHandler)}
}

func TestConfigure(t *testing.T) {
	t.Setenv("MY_ANTHROPIC_KEY", "sk-ant-env")

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("api_key_env: MY_ANTHROPIC_KEY\nbase_url: https://proxy.local/v1/\n"), &node); err != nil {
		t.Fatal(err)
	}
	a := &Anthropic{}
	if err := a.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if a.config.APIKey != "sk-ant-env" {
		t.Errorf("APIKey = %q, want key from env", a.config.APIKey)
	}
	if a.config.BaseURL != "https://proxy.local/v1" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", a.config.BaseURL)
	}
	if a.config.Model != defaultModel || a.config.MaxTokens != defaultMaxTokens {
		t.Errorf("defaults not applied: %+v", a.config)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{APIKey: "k", Model: "m"}},
		{name: "missing key", cfg: Config{Model: "m", APIKeyEnv: "X"}, wantErr: true},
		{name: "missing model", cfg: Config{APIKey: "k"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := &Anthropic{config: tt.cfg}
			if err := a.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProvisionRegistersKeyWithRedactor(t *testing.T) {
	t.Parallel()

	redactor := security.NewRedactor()
	ctx := core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir())
	ctx.RegisterService(security.ServiceRedactor, redactor)

	a := &Anthropic{config: Config{APIKey: "very-secret-key"}}
	if err := a.Provision(ctx); err != nil {
		t.Fatal(err)
	}
	if got := redactor.Redact("key=very-secret-key"); strings.Contains(got, "very-secret-key") {
		t.Errorf("Redact() = %q, key leaked", got)
	}
}

func TestComplete(t *testing.T) {
	t.Parallel()

	var got apiRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %s, want /messages", r.URL.Path)
		}
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okReply))
	}))
	defer srv.Close()

	temp := 0.4
	a := newTestProvider(srv.URL)
	resp, err := a.Complete(context.Background(), provider.CompletionRequest{
		System: "You are Ahmad.",
		Messages: []provider.Message{
			{Role: provider.MessageRoleAssistant, Content: "dropped"},
			{Role: provider.MessageRoleUser, Content: "hi"},
		},
		Temperature: &temp,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != "Hello there" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.FinishReason != provider.FinishReasonStop {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", resp.Usage.TotalTokens)
	}
	if got.System != "You are Ahmad." || len(got.Messages) != 1 || got.Messages[0].Content != "hi" {
		t.Errorf("request = %+v", got)
	}
	if got.MaxTokens != defaultMaxTokens {
		t.Errorf("MaxTokens = %d, want config default", got.MaxTokens)
	}
	if got.Temperature == nil || *got.Temperature != 0.4 {
		t.Errorf("Temperature = %v", got.Temperature)
	}
	if headers.Get("x-api-key") != "sk-ant-test" || headers.Get("anthropic-version") != defaultAPIVersion {
		t.Errorf("headers = %v", headers)
	}
}

func TestComplete_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{"rate limit", http.StatusTooManyRequests, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, provider.ErrRateLimit},
		{"overloaded", statusOverloaded, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`, provider.ErrProviderDown},
		{"server error", http.StatusInternalServerError, `oops`, provider.ErrProviderDown},
		{"auth", http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`, nil},
		{"bad request", http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"nope"}}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestProvider(srv.URL).Complete(context.Background(), provider.CompletionRequest{
				Messages: []provider.Message{{Role: provider.MessageRoleUser, Content: "hi"}},
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("err = %v, want %v", err, tt.sentinel)
			}
			if tt.sentinel == nil && provider.IsRetryable(err) {
				t.Errorf("err = %v must not be retryable", err)
			}
		})
	}
}

func TestComplete_ContextCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestProvider(srv.URL).Complete(ctx, provider.CompletionRequest{
		Messages: []provider.Message{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestComplete_NotProvisioned(t *testing.T) {
	t.Parallel()

	_, err := (&Anthropic{}).Complete(context.Background(), provider.CompletionRequest{})
	if !errors.Is(err, provider.ErrProviderDown) {
		t.Errorf("err = %v, want ErrProviderDown", err)
	}
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"healthy", http.StatusOK, false},
		{"auth error", http.StatusUnauthorized, true},
		{"down", http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var maxTokens int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req apiRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				maxTokens = req.MaxTokens
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(okReply))
			}))
			defer srv.Close()

			err := newTestProvider(srv.URL).HealthCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
			if maxTokens != 1 {
				t.Errorf("health check max_tokens = %d, want 1", maxTokens)
			}
		})
	}
}

func TestMapStopReason(t *testing.T) {
	t.Parallel()

	tests := map[string]provider.FinishReason{
		"end_turn":      provider.FinishReasonStop,
		"stop_sequence": provider.FinishReasonStop,
		"max_tokens":    provider.FinishReasonLength,
		"refusal":       provider.FinishReasonFiltering,
		"tool_use":      provider.FinishReason("tool_use"),
	}
	for in, want := range tests {
		if got := mapStopReason(in); got != want {
			t.Errorf("mapStopReason(%q) = %q, want %q", in, got, want)
		}
	}
}
