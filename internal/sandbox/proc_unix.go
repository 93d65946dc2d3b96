//go:build !windows

package sandbox

import (
	"os/exec"
	"syscall"
)

// setupProcess puts the child in its own process group so a timeout kills
// everything it spawned.
func setupProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: 0}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
