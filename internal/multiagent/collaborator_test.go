package multiagent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/flemzord/majlis/internal/provider"
	"github.com/flemzord/majlis/internal/provider/providertest"
)

var errBoom = errors.New("boom")

func TestDeliberate_Structure(t *testing.T) {
	t.Parallel()

	mock := providertest.Script("رأي 1", "رأي 2", "رأي 3", "رأي 4", "الخلاصة")
	c := NewCollaborator(mock, DefaultRoster(), Config{}, nil)

	var emitted []string
	res, err := c.Deliberate(context.Background(), "سياق", "ما أفضل أداة؟", func(_ context.Context, op Opinion) {
		emitted = append(emitted, op.Persona.Name)
	})
	if err != nil {
		t.Fatalf("Deliberate: %v", err)
	}
	if mock.Calls() != 5 {
		t.Errorf("calls = %d, want 5 (4 opinions + synthesis)", mock.Calls())
	}
	if len(res.Opinions) != 4 || !res.Synthesized || res.Answer != "الخلاصة" {
		t.Errorf("result = %+v", res)
	}
	want := []string{"أحمد", "سارة", "خالد", "منى"}
	if strings.Join(emitted, ",") != strings.Join(want, ",") {
		t.Errorf("emitted = %v, want %v", emitted, want)
	}

	// Each opinion prompt carries all prior opinions; synthesis sees the full transcript.
	prompts := mock.Prompts()
	if strings.Contains(prompts[0], "رأي 1") {
		t.Error("first opinion prompt should not contain prior opinions")
	}
	if !strings.Contains(prompts[2], "أحمد: رأي 1") || !strings.Contains(prompts[2], "سارة: رأي 2") {
		t.Errorf("third prompt missing prior opinions:\n%s", prompts[2])
	}
	if !strings.Contains(prompts[4], "منى: رأي 4") {
		t.Errorf("synthesis prompt missing transcript:\n%s", prompts[4])
	}

	// The synthesis call is made by the last persona.
	if !strings.Contains(mock.Requests[4].System, "يوسف") {
		t.Errorf("synthesis system prompt = %q, want last persona", mock.Requests[4].System)
	}
}

func TestDeliberate_FailurePolicy(t *testing.T) {
	t.Parallel()

	roster := DefaultRoster()[:3]

	tests := []struct {
		name        string
		steps       []any
		wantAnswer  string
		wantOps     int
		wantSynth   bool
		wantErr     error
		wantFailure int
	}{
		{
			name:        "failed opinion skipped",
			steps:       []any{errBoom, "second", "final"},
			wantAnswer:  "final",
			wantOps:     1,
			wantSynth:   true,
			wantFailure: 1,
		},
		{
			name:        "empty opinion skipped",
			steps:       []any{"  ", "second", "final"},
			wantAnswer:  "final",
			wantOps:     1,
			wantSynth:   true,
			wantFailure: 1,
		},
		{
			name:        "all opinions fail, synthesis succeeds",
			steps:       []any{errBoom, errBoom, "final"},
			wantAnswer:  "final",
			wantSynth:   true,
			wantFailure: 2,
		},
		{
			name:        "synthesis fails, falls back to last opinion",
			steps:       []any{"first", "second", errBoom},
			wantAnswer:  "second",
			wantOps:     2,
			wantFailure: 1,
		},
		{
			name:        "everything fails",
			steps:       []any{errBoom, provider.ErrEmptyResponse, errBoom},
			wantErr:     ErrNoResult,
			wantFailure: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			failures := 0
			c := NewCollaborator(providertest.Script(tt.steps...), roster, Config{}, nil,
				WithFailureHook(func(string, error) { failures++ }))

			res, err := c.Deliberate(context.Background(), "", "q", nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if res.Answer != tt.wantAnswer || len(res.Opinions) != tt.wantOps || res.Synthesized != tt.wantSynth {
				t.Errorf("result = %+v", res)
			}
			if failures != tt.wantFailure {
				t.Errorf("failures = %d, want %d", failures, tt.wantFailure)
			}
		})
	}
}

func TestDeliberate_SinglePersonaSynthesizesOnly(t *testing.T) {
	t.Parallel()

	mock := providertest.Reply("answer")
	c := NewCollaborator(mock, DefaultRoster()[:1], Config{}, nil)

	res, err := c.Deliberate(context.Background(), "", "q", nil)
	if err != nil {
		t.Fatal(err)
	}
	if mock.Calls() != 1 || res.Answer != "answer" || len(res.Opinions) != 0 {
		t.Errorf("calls = %d, result = %+v", mock.Calls(), res)
	}
}

func TestDeliberate_EmptyRoster(t *testing.T) {
	t.Parallel()

	c := NewCollaborator(providertest.Reply("x"), nil, Config{}, nil)
	if _, err := c.Deliberate(context.Background(), "", "q", nil); !errors.Is(err, ErrEmptyRoster) {
		t.Errorf("err = %v, want ErrEmptyRoster", err)
	}
}

func TestDeliberate_Cancelled(t *testing.T) {
	t.Parallel()

	mock := providertest.Reply("x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCollaborator(mock, DefaultRoster(), Config{}, nil).Deliberate(ctx, "", "q", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if mock.Calls() != 0 {
		t.Errorf("calls = %d, want 0", mock.Calls())
	}
}

func TestValidateRoster(t *testing.T) {
	t.Parallel()

	if err := ValidateRoster(DefaultRoster()); err != nil {
		t.Errorf("default roster: %v", err)
	}
	if err := ValidateRoster(nil); !errors.Is(err, ErrEmptyRoster) {
		t.Errorf("nil roster: err = %v", err)
	}
	dup := []Persona{{Name: "a"}, {Name: "a"}, {Name: " "}}
	err := ValidateRoster(dup)
	if err == nil || !strings.Contains(err.Error(), "duplicate") || !strings.Contains(err.Error(), "name is required") {
		t.Errorf("dup roster: err = %v", err)
	}
}

func TestPersona_Display(t *testing.T) {
	t.Parallel()

	if got := (Persona{Name: "سارة", Emoji: "🤖"}).Display(); got != "🤖 سارة" {
		t.Errorf("Display() = %q", got)
	}
	if got := (Persona{Name: "x"}).Display(); got != "x" {
		t.Errorf("Display() = %q", got)
	}
}
