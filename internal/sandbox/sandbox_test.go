package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/majlis/internal/security"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("sandbox tests need a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newTestRunner(t *testing.T, cfg Config) (*Runner, string) {
	t.Helper()
	root := t.TempDir()
	return New(cfg, nil, WithTempRoot(root)), root
}

func assertCleanedUp(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging directory left behind: %v", entries)
	}
}

func TestRun_Shell(t *testing.T) {
	t.Parallel()
	requireShell(t)

	tests := []struct {
		name       string
		source     string
		outcome    Outcome
		exitCode   int
		stdout     string
		stderr     string
		detailPart string
	}{
		{name: "stdout", source: "echo مرحبا", outcome: OutcomeSuccess, stdout: "مرحبا"},
		{name: "silent", source: "true", outcome: OutcomeSuccess},
		{name: "separate streams", source: "echo out; echo err >&2", outcome: OutcomeSuccess, stdout: "out", stderr: "err"},
		{name: "non-zero exit", source: "echo partial; exit 3", outcome: OutcomeFailure, exitCode: 3, stdout: "partial"},
		{name: "syntax error", source: "if then fi (", outcome: OutcomeError, detailPart: "syntax"},
		{name: "empty", source: "  \n", outcome: OutcomeError, detailPart: "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, root := newTestRunner(t, Config{})

			res := r.Run(context.Background(), KindShell, tt.source)
			if res.Outcome != tt.outcome {
				t.Fatalf("Outcome = %q, want %q (detail %q, stderr %q)", res.Outcome, tt.outcome, res.Detail, res.Stderr)
			}
			if res.ExitCode != tt.exitCode {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.exitCode)
			}
			if res.Stdout != tt.stdout || res.Stderr != tt.stderr {
				t.Errorf("streams = %q / %q, want %q / %q", res.Stdout, res.Stderr, tt.stdout, tt.stderr)
			}
			if !strings.Contains(res.Detail, tt.detailPart) {
				t.Errorf("Detail = %q, want it to contain %q", res.Detail, tt.detailPart)
			}
			assertCleanedUp(t, root)
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()
	requireShell(t)

	r, root := newTestRunner(t, Config{ShellTimeout: 300 * time.Millisecond, WaitDelay: 200 * time.Millisecond})

	start := time.Now()
	res := r.Run(context.Background(), KindShell, "echo started; sleep 10 & sleep 10; echo never")
	elapsed := time.Since(start)

	if res.Outcome != OutcomeTimeout {
		t.Fatalf("Outcome = %q, want timeout (detail %q)", res.Outcome, res.Detail)
	}
	if elapsed > 3*time.Second {
		t.Errorf("Run took %s, want close to the 300ms timeout", elapsed)
	}
	if strings.Contains(res.Stdout, "never") {
		t.Error("script kept running after timeout")
	}
	if !strings.Contains(res.String(), "انتهت مهلة التنفيذ") {
		t.Errorf("String() = %q, want timeout label", res.String())
	}
	assertCleanedUp(t, root)
}

func TestRun_CallerCancellation(t *testing.T) {
	t.Parallel()
	requireShell(t)

	r, root := newTestRunner(t, Config{ShellTimeout: 10 * time.Second, WaitDelay: 200 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res := r.Run(ctx, KindShell, "sleep 10")
	if res.Outcome != OutcomeError {
		t.Errorf("Outcome = %q, want error for caller cancellation", res.Outcome)
	}
	assertCleanedUp(t, root)
}

func TestRun_MissingInterpreter(t *testing.T) {
	t.Parallel()

	r, root := newTestRunner(t, Config{Python: "definitely-not-a-python-binary"})
	res := r.Run(context.Background(), KindCode, "print(1)")
	if res.Outcome != OutcomeError || res.Detail == "" {
		t.Errorf("result = %+v, want error outcome with detail", res)
	}
	assertCleanedUp(t, root)
}

func TestRun_Python(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}

	r, _ := newTestRunner(t, Config{})
	res := r.Run(context.Background(), KindCode, "import sys\nprint(6 * 7)\nprint('warn', file=sys.stderr)")
	if res.Outcome != OutcomeSuccess || res.Stdout != "42" || res.Stderr != "warn" {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_ChildEnvironmentSanitized(t *testing.T) {
	requireShell(t)
	t.Setenv("GEMINI_API_KEY", "AIzaShouldNeverReachTheChild")

	r, _ := newTestRunner(t, Config{})
	res := r.Run(context.Background(), KindShell, `echo "key=${GEMINI_API_KEY:-unset}"`)
	if res.Stdout != "key=unset" {
		t.Errorf("Stdout = %q, want key=unset", res.Stdout)
	}
}

func TestRun_OutputCapped(t *testing.T) {
	t.Parallel()
	requireShell(t)

	r, _ := newTestRunner(t, Config{MaxOutputBytes: 10})
	res := r.Run(context.Background(), KindShell, "printf '%s' 0123456789abcdefghij")
	if !strings.HasPrefix(res.Stdout, "0123456789") || !strings.Contains(res.Stdout, "10 bytes truncated") {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}

func TestExtractCode(t *testing.T) {
	t.Parallel()

	reply := "إليك الحل:\n```bash\nls -la\n```\nوبالبايثون:\n```python\nprint('hi')\n```"
	tests := []struct {
		name   string
		text   string
		kind   Kind
		want   string
		wantOK bool
	}{
		{"python", reply, KindCode, "print('hi')", true},
		{"shell", reply, KindShell, "ls -la", true},
		{"untagged", "```\necho x\n```", KindShell, "echo x", true},
		{"missing", "لا يوجد كود هنا", KindCode, "", false},
		{"empty block", "```python\n\n```", KindCode, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractCode(tt.text, tt.kind)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ExtractCode() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResult_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  Result
		want []string
		not  []string
	}{
		{"silent success", Result{Outcome: OutcomeSuccess}, []string{"بنجاح", NoOutputMarker}, nil},
		{"success with output", Result{Outcome: OutcomeSuccess, Stdout: "42"}, []string{"بنجاح", "المخرجات", "42"}, []string{NoOutputMarker}},
		{"failure", Result{Outcome: OutcomeFailure, ExitCode: 2, Stderr: "boom"}, []string{"رمز الخروج 2", "الأخطاء", "boom"}, []string{NoOutputMarker}},
		{"error", Result{Outcome: OutcomeError, Detail: "no python"}, []string{"تعذر التنفيذ", "no python"}, nil},
	}
	for _, tt := range tests {
		got := tt.res.String()
		for _, w := range tt.want {
			if !strings.Contains(got, w) {
				t.Errorf("%s: String() = %q, missing %q", tt.name, got, w)
			}
		}
		for _, n := range tt.not {
			if strings.Contains(got, n) {
				t.Errorf("%s: String() = %q, unexpected %q", tt.name, got, n)
			}
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := (Config{}).Validate(); err != nil {
		t.Errorf("zero config: %v", err)
	}
	if err := (Config{Isolation: "vm"}).Validate(); err == nil {
		t.Error("expected error for unknown isolation")
	}
}

func TestDockerArgs(t *testing.T) {
	t.Parallel()

	r := New(Config{Isolation: IsolationDocker}, nil)
	args := strings.Join(r.dockerArgs("box", "/tmp/stage", KindCode, "main.py"), " ")
	for _, want := range []string{"--network=none", "--read-only", "--cap-drop ALL", "--name box", "/tmp/stage:/sandbox:ro", "python:3.12-alpine python3 /sandbox/main.py"} {
		if !strings.Contains(args, want) {
			t.Errorf("docker args missing %q: %s", want, args)
		}
	}
}

func TestStage_Modes(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permissions only")
	}

	tests := []struct {
		name      string
		isolation Isolation
		kind      Kind
		wantDir   os.FileMode
		wantFile  os.FileMode
		wantName  string
	}{
		{"process keeps staging private", IsolationProcess, KindCode, 0o700, 0o600, "main.py"},
		// The container user 65534 must be able to traverse and read.
		{"docker is world readable", IsolationDocker, KindShell, 0o755, 0o644, "main.sh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, root := newTestRunner(t, Config{Isolation: tt.isolation})
			dir, script, err := r.stage(tt.kind, "echo hi")
			if err != nil {
				t.Fatalf("stage: %v", err)
			}
			if filepath.Dir(dir) != root {
				t.Errorf("staged under %s, want %s", filepath.Dir(dir), root)
			}
			if script != tt.wantName {
				t.Errorf("script = %q, want %q", script, tt.wantName)
			}

			info, err := os.Stat(dir)
			if err != nil {
				t.Fatal(err)
			}
			if got := info.Mode().Perm(); got != tt.wantDir {
				t.Errorf("dir mode = %o, want %o", got, tt.wantDir)
			}
			info, err = os.Stat(filepath.Join(dir, script))
			if err != nil {
				t.Fatal(err)
			}
			if got := info.Mode().Perm(); got != tt.wantFile {
				t.Errorf("script mode = %o, want %o", got, tt.wantFile)
			}
		})
	}
}

func TestRun_Audited(t *testing.T) {
	t.Parallel()
	requireShell(t)

	redactor := security.NewRedactor()
	redactor.AddLiteral("sk-audit-secret")
	var events []security.AuditEvent
	audit := security.NewAuditLogger(security.AuditLoggerConfig{
		Redactor: redactor,
		OnEvent:  func(e security.AuditEvent) { events = append(events, e) },
	})
	r := New(Config{}, nil, WithTempRoot(t.TempDir()), WithAudit(audit))

	r.Run(context.Background(), KindShell, "echo sk-audit-secret; exit 2")

	if len(events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Type != security.EventExecution {
		t.Errorf("type = %q", e.Type)
	}
	if strings.Contains(e.Detail, "sk-audit-secret") {
		t.Errorf("detail leaked secret: %q", e.Detail)
	}
	if e.Metadata["kind"] != "shell" || e.Metadata["outcome"] != string(OutcomeFailure) || e.Metadata["exit_code"] != "2" {
		t.Errorf("metadata = %v", e.Metadata)
	}
}
