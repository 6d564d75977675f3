package worker

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds worker pool parameters.
type Config struct {
	Count      int    `toml:"count"`
	JobTimeout string `toml:"job_timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Count      string
	JobTimeout string
}

// JobTimeoutDuration returns JobTimeout as a time.Duration.
func (c *Config) JobTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.JobTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Count != 0 {
		c.Count = overlay.Count
	}
	if overlay.JobTimeout != "" {
		c.JobTimeout = overlay.JobTimeout
	}
}

func (c *Config) loadDefaults() {
	if c.Count == 0 {
		c.Count = 2
	}
	if c.JobTimeout == "" {
		c.JobTimeout = "15m"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Count != "" {
		if v := os.Getenv(env.Count); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Count = n
			}
		}
	}
	if env.JobTimeout != "" {
		if v := os.Getenv(env.JobTimeout); v != "" {
			c.JobTimeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.Count < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	if d, err := time.ParseDuration(c.JobTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid job_timeout: %q", c.JobTimeout)
	}
	return nil
}
