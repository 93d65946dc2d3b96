package sandbox

import (
	"errors"
	"fmt"
	"time"
)

// Isolation selects how snippets are executed.
type Isolation string

// Isolation modes.
const (
	IsolationProcess Isolation = "process"
	IsolationDocker  Isolation = "docker"
)

// Config holds the sandbox settings.
type Config struct {
	Isolation    Isolation     `yaml:"isolation"`
	CodeTimeout  time.Duration `yaml:"code_timeout"`
	ShellTimeout time.Duration `yaml:"shell_timeout"`

	// WaitDelay bounds how long output pipes may stay open after the
	// child is killed. Default: 2s.
	WaitDelay time.Duration `yaml:"wait_delay"`

	Python string `yaml:"python"`
	Shell  string `yaml:"shell"`

	// MaxOutputBytes caps each captured stream. Default: 16 KiB.
	MaxOutputBytes int `yaml:"max_output_bytes"`

	Docker DockerConfig `yaml:"docker"`
}

// DockerConfig holds container limits for docker isolation.
type DockerConfig struct {
	Image     string `yaml:"image"`
	CPUShares int    `yaml:"cpu_shares"`
	MemoryMB  int    `yaml:"memory_mb"`
	TmpfsMB   int    `yaml:"tmpfs_mb"`
	PidsLimit int    `yaml:"pids_limit"`
}

func (c Config) withDefaults() Config {
	if c.Isolation == "" {
		c.Isolation = IsolationProcess
	}
	if c.CodeTimeout <= 0 {
		c.CodeTimeout = 30 * time.Second
	}
	if c.ShellTimeout <= 0 {
		c.ShellTimeout = 20 * time.Second
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = 2 * time.Second
	}
	if c.Python == "" {
		c.Python = "python3"
	}
	if c.Shell == "" {
		c.Shell = "sh"
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = 16 << 10
	}
	if c.Docker.Image == "" {
		c.Docker.Image = "python:3.12-alpine"
	}
	if c.Docker.CPUShares <= 0 {
		c.Docker.CPUShares = 512
	}
	if c.Docker.MemoryMB <= 0 {
		c.Docker.MemoryMB = 256
	}
	if c.Docker.TmpfsMB <= 0 {
		c.Docker.TmpfsMB = 64
	}
	if c.Docker.PidsLimit <= 0 {
		c.Docker.PidsLimit = 128
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	var errs []error
	switch c.Isolation {
	case IsolationProcess, IsolationDocker:
	default:
		errs = append(errs, fmt.Errorf("sandbox: unknown isolation %q (want process or docker)", c.Isolation))
	}
	if c.WaitDelay > c.CodeTimeout {
		errs = append(errs, errors.New("sandbox: wait_delay must not exceed code_timeout"))
	}
	return errors.Join(errs...)
}
