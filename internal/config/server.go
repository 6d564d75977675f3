package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "NEXUS_SERVER_HOST"
	EnvServerPort              = "NEXUS_SERVER_PORT"
	EnvServerReadTimeout       = "NEXUS_SERVER_READ_TIMEOUT"
	EnvServerReadHeaderTimeout = "NEXUS_SERVER_READ_HEADER_TIMEOUT"
	EnvServerWriteTimeout      = "NEXUS_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout       = "NEXUS_SERVER_IDLE_TIMEOUT"
	EnvServerShutdownTimeout   = "NEXUS_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds HTTP listener settings. The read timeout bounds a whole
// upload, so it defaults well above the header timeout.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadTimeout       string `toml:"read_timeout"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	IdleTimeout       string `toml:"idle_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

// ServerTimeouts are the parsed ServerConfig durations.
type ServerTimeouts struct {
	Read       time.Duration
	ReadHeader time.Duration
	Write      time.Duration
	Idle       time.Duration
	Shutdown   time.Duration
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Timeouts parses the configured durations. Finalize has already rejected
// values that fail to parse.
func (c *ServerConfig) Timeouts() ServerTimeouts {
	parse := func(s string) time.Duration {
		d, _ := time.ParseDuration(s)
		return d
	}
	return ServerTimeouts{
		Read:       parse(c.ReadTimeout),
		ReadHeader: parse(c.ReadHeaderTimeout),
		Write:      parse(c.WriteTimeout),
		Idle:       parse(c.IdleTimeout),
		Shutdown:   parse(c.ShutdownTimeout),
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	for _, d := range c.durations() {
		if *d.value == "" {
			*d.value = d.fallback
		}
	}

	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}
	if port, err := strconv.Atoi(os.Getenv(EnvServerPort)); err == nil {
		c.Port = port
	}
	for _, d := range c.durations() {
		if v := os.Getenv(d.env); v != "" {
			*d.value = v
		}
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for _, d := range c.durations() {
		if v, err := time.ParseDuration(*d.value); err != nil || v < 0 {
			return fmt.Errorf("invalid %s: %q", d.name, *d.value)
		}
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}

	mine, theirs := c.durations(), overlay.durations()
	for i := range mine {
		if *theirs[i].value != "" {
			*mine[i].value = *theirs[i].value
		}
	}
}

type durationField struct {
	name     string
	env      string
	fallback string
	value    *string
}

func (c *ServerConfig) durations() []durationField {
	return []durationField{
		{"read_timeout", EnvServerReadTimeout, "15m", &c.ReadTimeout},
		{"read_header_timeout", EnvServerReadHeaderTimeout, "10s", &c.ReadHeaderTimeout},
		{"write_timeout", EnvServerWriteTimeout, "1m", &c.WriteTimeout},
		{"idle_timeout", EnvServerIdleTimeout, "2m", &c.IdleTimeout},
		{"shutdown_timeout", EnvServerShutdownTimeout, "30s", &c.ShutdownTimeout},
	}
}
