package sqlite

import (
	"errors"
	"fmt"

	"github.com/flemzord/majlis/internal/memory"
)

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "majlis.db"
)

// Config holds the SQLite memory module configuration.
type Config struct {
	// Path is the database file path. Defaults to {DataDir}/majlis.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode for concurrent reads. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// Limits caps the message, summary and lesson layers.
	Limits memory.Limits `yaml:",inline"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	c.Limits = c.Limits.WithDefaults()
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	var errs []error
	if c.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout))
	}
	if c.Path == "" {
		errs = append(errs, errors.New("sqlite: path is required"))
	}
	return errors.Join(errs...)
}
