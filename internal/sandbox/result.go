package sandbox

import (
	"fmt"
	"strings"
	"time"
)

// Outcome classifies a run.
type Outcome string

// Run outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
)

// NoOutputMarker is rendered when a successful run printed nothing.
const NoOutputMarker = "(تم التنفيذ دون مخرجات)"

// Result is the outcome of one run. Detail explains OutcomeError.
type Result struct {
	Outcome  Outcome
	ExitCode int
	Stdout   string
	Stderr   string
	Detail   string
	Duration time.Duration
	Timeout  time.Duration
}

// Succeeded reports whether the snippet ran and exited zero.
func (r Result) Succeeded() bool { return r.Outcome == OutcomeSuccess }

// String renders a label followed by stdout and stderr.
func (r Result) String() string {
	var b strings.Builder
	switch r.Outcome {
	case OutcomeSuccess:
		b.WriteString("✅ تم التنفيذ بنجاح")
	case OutcomeFailure:
		fmt.Fprintf(&b, "❌ فشل التنفيذ (رمز الخروج %d)", r.ExitCode)
	case OutcomeTimeout:
		fmt.Fprintf(&b, "⏱ انتهت مهلة التنفيذ (%s)", r.Timeout)
	default:
		b.WriteString("⚠️ تعذر التنفيذ")
		if r.Detail != "" {
			b.WriteString(": " + r.Detail)
		}
	}

	if r.Stdout != "" {
		b.WriteString("\n\nالمخرجات:\n```\n" + r.Stdout + "\n```")
	}
	if r.Stderr != "" {
		b.WriteString("\n\nالأخطاء:\n```\n" + r.Stderr + "\n```")
	}
	if r.Outcome == OutcomeSuccess && r.Stdout == "" && r.Stderr == "" {
		b.WriteString("\n" + NoOutputMarker)
	}
	return b.String()
}
