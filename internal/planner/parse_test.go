package planner

import (
	"errors"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr error
	}{
		{
			name: "strict",
			raw:  `{"steps": ["ابحث", "حلل", "لخص"]}`,
			want: []string{"ابحث", "حلل", "لخص"},
		},
		{
			name: "fenced",
			raw:  "```json\n{\"steps\": [\"one\", \"two\"]}\n```",
			want: []string{"one", "two"},
		},
		{
			name: "prose around",
			raw:  "Here is the plan:\n{\"steps\": [\"a\", \"b\"]}\nGood luck!",
			want: []string{"a", "b"},
		},
		{
			name: "blank steps dropped",
			raw:  `{"steps": ["  ", "real", ""]}`,
			want: []string{"real"},
		},
		{
			name: "extra fields tolerated",
			raw:  `{"steps": ["x"], "note": "fine"}`,
			want: []string{"x"},
		},
		{
			name: "prose braces before plan",
			raw:  "I split the {request} you gave into steps:\n{\"steps\": [\"gather\", \"answer\"]}",
			want: []string{"gather", "answer"},
		},
		{name: "prose braces only", raw: "I need more {context} first", wantErr: ErrNoPayload},
		{name: "garbage", raw: "I cannot help with that", wantErr: ErrNoPayload},
		{name: "empty", raw: "", wantErr: ErrNoPayload},
		{name: "missing field", raw: `{"plan": ["x"]}`, wantErr: ErrInvalidPlan},
		{name: "wrong item type", raw: `{"steps": [1, 2]}`, wantErr: ErrInvalidPlan},
		{name: "steps not array", raw: `{"steps": "do it"}`, wantErr: ErrInvalidPlan},
		{name: "empty list", raw: `{"steps": []}`, wantErr: ErrEmptyPlan},
		{name: "all blank", raw: `{"steps": [" "]}`, wantErr: ErrEmptyPlan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Parse() = %q, want %q", got, tt.want)
			}
		})
	}
}
