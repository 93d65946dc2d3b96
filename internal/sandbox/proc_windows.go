//go:build windows

package sandbox

import "os/exec"

// setupProcess keeps the default cancel behavior; Windows has no process
// groups to signal.
func setupProcess(*exec.Cmd) {}
