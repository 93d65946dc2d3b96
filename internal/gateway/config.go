package gateway

import "time"

// Config holds HTTP gateway configuration.
type Config struct {
	Bind              string        `yaml:"bind"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	FeedBuffer        int           `yaml:"feed_buffer"`
	FeedWriteTimeout  time.Duration `yaml:"feed_write_timeout"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 20 << 20
	}
	if c.FeedBuffer <= 0 {
		c.FeedBuffer = 32
	}
	if c.FeedWriteTimeout <= 0 {
		c.FeedWriteTimeout = 10 * time.Second
	}
}
