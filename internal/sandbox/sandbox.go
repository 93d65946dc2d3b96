// Package sandbox executes model-generated code and shell snippets in a
// child process or a locked-down container, with a hard timeout and
// separately captured output streams.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/flemzord/majlis/internal/extract"
	"github.com/flemzord/majlis/internal/security"
	"github.com/google/uuid"
	"mvdan.cc/sh/v3/syntax"
)

// Kind is the language of a snippet.
type Kind string

// Snippet kinds.
const (
	KindCode  Kind = "code"
	KindShell Kind = "shell"
)

// Fence languages accepted for each kind.
var fenceLangs = map[Kind][]string{
	KindCode:  {"python", "py", "python3"},
	KindShell: {"bash", "sh", "shell", "console"},
}

// ExtractCode returns the first fenced block of the given kind in text.
// An untagged fence is accepted when no tagged block matches.
func ExtractCode(text string, kind Kind) (string, bool) {
	src, ok := extract.First(text, fenceLangs[kind]...)
	if !ok || strings.TrimSpace(src) == "" {
		return "", false
	}
	return src, true
}

// Runner executes snippets.
type Runner struct {
	cfg      Config
	logger   *slog.Logger
	secrets  []string
	tempRoot string
	audit    *security.AuditLogger
}

// Option configures a Runner.
type Option func(*Runner)

// WithSecrets registers values scrubbed from the child environment.
func WithSecrets(secrets ...string) Option {
	return func(r *Runner) { r.secrets = append(r.secrets, secrets...) }
}

// WithTempRoot sets the parent directory of staging directories.
func WithTempRoot(dir string) Option {
	return func(r *Runner) { r.tempRoot = dir }
}

// WithAudit records every run, source included, to audit.
func WithAudit(audit *security.AuditLogger) Option {
	return func(r *Runner) { r.audit = audit }
}

// New creates a Runner.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "sandbox"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Check reports whether the configured interpreter or docker CLI exists.
func (r *Runner) Check() error {
	bins := []string{r.cfg.Python, r.cfg.Shell}
	if r.cfg.Isolation == IsolationDocker {
		bins = []string{"docker"}
	}
	var errs []error
	for _, b := range bins {
		if _, err := exec.LookPath(b); err != nil {
			errs = append(errs, fmt.Errorf("sandbox: %s not found: %w", b, err))
		}
	}
	return errors.Join(errs...)
}

// Timeout returns the wall-clock limit for kind.
func (r *Runner) Timeout(kind Kind) time.Duration {
	if kind == KindShell {
		return r.cfg.ShellTimeout
	}
	return r.cfg.CodeTimeout
}

// Run executes source. It never returns an error: every failure is
// reported through Result.Outcome. The staging directory is removed
// before Run returns.
func (r *Runner) Run(ctx context.Context, kind Kind, source string) Result {
	start := time.Now()
	res := r.run(ctx, kind, source)
	res.Duration = time.Since(start)
	res.Timeout = r.Timeout(kind)

	r.logger.Info("sandbox: executed",
		"kind", kind,
		"outcome", res.Outcome,
		"exit_code", res.ExitCode,
		"duration", res.Duration.Round(time.Millisecond),
	)
	r.audit.Log(security.AuditEvent{
		Type:   security.EventExecution,
		Detail: source,
		Metadata: map[string]string{
			"kind":      string(kind),
			"outcome":   string(res.Outcome),
			"exit_code": strconv.Itoa(res.ExitCode),
		},
	})
	return res
}

func (r *Runner) run(ctx context.Context, kind Kind, source string) Result {
	if kind != KindCode && kind != KindShell {
		return Result{Outcome: OutcomeError, Detail: fmt.Sprintf("unknown snippet kind %q", kind)}
	}
	if strings.TrimSpace(source) == "" {
		return Result{Outcome: OutcomeError, Detail: "empty snippet"}
	}
	if kind == KindShell {
		if err := CheckShell(source); err != nil {
			return Result{Outcome: OutcomeError, Detail: err.Error()}
		}
	}

	dir, script, err := r.stage(kind, source)
	if dir != "" {
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				r.logger.Warn("sandbox: cleanup failed", "dir", dir, "error", err)
			}
		}()
	}
	if err != nil {
		return Result{Outcome: OutcomeError, Detail: fmt.Sprintf("staging: %v", err)}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.Timeout(kind))
	defer cancel()

	var containerName string
	var cmd *exec.Cmd
	if r.cfg.Isolation == IsolationDocker {
		containerName = "majlis-sandbox-" + uuid.NewString()
		cmd = exec.CommandContext(runCtx, "docker", r.dockerArgs(containerName, dir, kind, script)...) //nolint:gosec // args are built from config
	} else {
		cmd = exec.CommandContext(runCtx, r.interpreter(kind), script) //nolint:gosec // interpreter comes from config
		cmd.Dir = dir
		cmd.Env = append(security.SanitizedEnv(r.secrets...), "HOME="+dir, "TMPDIR="+dir)
		setupProcess(cmd)
	}
	cmd.WaitDelay = r.cfg.WaitDelay

	stdout := newCappedBuffer(r.cfg.MaxOutputBytes)
	stderr := newCappedBuffer(r.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err = cmd.Run()
	res := Result{
		Stdout: strings.TrimRight(stdout.String(), "\n"),
		Stderr: strings.TrimRight(stderr.String(), "\n"),
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.Outcome = OutcomeTimeout
		if containerName != "" {
			r.killContainer(containerName)
		}
	case ctx.Err() != nil:
		res.Outcome = OutcomeError
		res.Detail = ctx.Err().Error()
		if containerName != "" {
			r.killContainer(containerName)
		}
	case err == nil:
		res.Outcome = OutcomeSuccess
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Outcome = OutcomeFailure
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.Outcome = OutcomeError
			res.Detail = err.Error()
		}
	}
	return res
}

// stage writes source into a fresh temp directory and returns the directory
// and the script name. Under docker isolation the container runs as
// 65534:65534, so the directory and script are made world-readable; local
// runs keep them private to the current user.
func (r *Runner) stage(kind Kind, source string) (dir, script string, err error) {
	dir, err = os.MkdirTemp(r.tempRoot, "majlis-sandbox-*")
	if err != nil {
		return "", "", err
	}

	dirMode, fileMode := os.FileMode(0o700), os.FileMode(0o600)
	if r.cfg.Isolation == IsolationDocker {
		dirMode, fileMode = 0o755, 0o644
	}
	if err := os.Chmod(dir, dirMode); err != nil {
		return dir, "", err
	}

	script = "main.py"
	if kind == KindShell {
		script = "main.sh"
	}
	path := filepath.Join(dir, script)
	if err := os.WriteFile(path, []byte(source), fileMode); err != nil {
		return dir, "", err
	}
	// WriteFile is subject to the umask.
	if err := os.Chmod(path, fileMode); err != nil {
		return dir, "", err
	}
	return dir, script, nil
}

func (r *Runner) interpreter(kind Kind) string {
	if kind == KindShell {
		return r.cfg.Shell
	}
	return r.cfg.Python
}

// dockerArgs builds a run command with no network, no capabilities, a
// read-only root and the staging directory mounted read-only.
func (r *Runner) dockerArgs(name, dir string, kind Kind, script string) []string {
	d := r.cfg.Docker
	args := []string{
		"run", "--rm",
		"--name", name,
		"--read-only",
		"--network=none",
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges:true",
		"--user", "65534:65534",
		"--pids-limit", strconv.Itoa(d.PidsLimit),
		"--cpu-shares", strconv.Itoa(d.CPUShares),
		"--memory", strconv.Itoa(d.MemoryMB) + "m",
		"--tmpfs", "/tmp:rw,noexec,nosuid,size=" + strconv.Itoa(d.TmpfsMB) + "m",
		"-v", dir + ":/sandbox:ro",
		"-w", "/sandbox",
		d.Image,
	}
	interp := "python3"
	if kind == KindShell {
		interp = "sh"
	}
	return append(args, interp, "/sandbox/"+script)
}

func (r *Runner) killContainer(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if out, err := exec.CommandContext(ctx, "docker", "kill", name).CombinedOutput(); err != nil { //nolint:gosec // name is generated
		r.logger.Debug("sandbox: docker kill", "container", name, "error", err, "output", string(out))
	}
}

// CheckShell parses source as POSIX/bash shell and reports syntax errors
// before anything is executed.
func CheckShell(source string) error {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	if _, err := parser.Parse(strings.NewReader(source), "snippet.sh"); err != nil {
		return fmt.Errorf("shell syntax error: %w", err)
	}
	return nil
}

// cappedBuffer keeps the first max bytes written and counts the rest.
type cappedBuffer struct {
	buf     bytes.Buffer
	max     int
	dropped int
}

func newCappedBuffer(limit int) *cappedBuffer { return &cappedBuffer{max: limit} }

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.buf.Len()
	switch {
	case room <= 0:
		b.dropped += len(p)
	case len(p) > room:
		b.buf.Write(p[:room])
		b.dropped += len(p) - room
	default:
		b.buf.Write(p)
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.dropped == 0 {
		return b.buf.String()
	}
	return strings.ToValidUTF8(b.buf.String(), "") + fmt.Sprintf("\n…[%d bytes truncated]", b.dropped)
}
