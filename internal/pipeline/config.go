package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds pipeline tuning parameters.
type Config struct {
	FanOut            int    `toml:"fan_out"`
	PersistRetryDelay string `toml:"persist_retry_delay"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	FanOut            string
	PersistRetryDelay string
}

// PersistRetryDelayDuration returns PersistRetryDelay as a time.Duration.
func (c *Config) PersistRetryDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.PersistRetryDelay)
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
	if overlay.FanOut != 0 {
		c.FanOut = overlay.FanOut
	}
	if overlay.PersistRetryDelay != "" {
		c.PersistRetryDelay = overlay.PersistRetryDelay
	}
}

func (c *Config) loadDefaults() {
	if c.FanOut == 0 {
		c.FanOut = 1
	}
	if c.PersistRetryDelay == "" {
		c.PersistRetryDelay = "250ms"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.FanOut != "" {
		if v := os.Getenv(env.FanOut); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.FanOut = n
			}
		}
	}
	if env.PersistRetryDelay != "" {
		if v := os.Getenv(env.PersistRetryDelay); v != "" {
			c.PersistRetryDelay = v
		}
	}
}

func (c *Config) validate() error {
	if c.FanOut < 1 {
		return fmt.Errorf("fan_out must be at least 1")
	}
	if d, err := time.ParseDuration(c.PersistRetryDelay); err != nil || d < 0 {
		return fmt.Errorf("invalid persist_retry_delay: %q", c.PersistRetryDelay)
	}
	return nil
}
