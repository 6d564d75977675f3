package render

import (
	"fmt"
	"os"
	"strconv"
)

// Backend names accepted by Config.Backend.
const (
	BackendImageMagick = "imagemagick"
	BackendMuPDF       = "mupdf"
)

// Config selects the rendering backend and the default output of each page.
type Config struct {
	Backend string `toml:"backend"`
	DPI     int    `toml:"dpi"`
	Format  string `toml:"format"`
	Quality int    `toml:"quality"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Backend string
	DPI     string
	Format  string
	Quality string
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
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.DPI > 0 {
		c.DPI = overlay.DPI
	}
	if overlay.Format != "" {
		c.Format = overlay.Format
	}
	if overlay.Quality > 0 {
		c.Quality = overlay.Quality
	}
}

// Options returns the per-call render options described by the config.
func (c *Config) Options() Options {
	return Options{
		DPI:    c.DPI,
		Format: Format(c.Format),
	}
}

func (c *Config) loadDefaults() {
	if c.Backend == "" {
		c.Backend = BackendImageMagick
	}
	if c.DPI <= 0 {
		c.DPI = 200
	}
	if c.Format == "" {
		c.Format = string(FormatPNG)
	}
	if c.Quality <= 0 {
		c.Quality = 90
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Backend != "" {
		if v := os.Getenv(env.Backend); v != "" {
			c.Backend = v
		}
	}
	if env.DPI != "" {
		if v := os.Getenv(env.DPI); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.DPI = n
			}
		}
	}
	if env.Format != "" {
		if v := os.Getenv(env.Format); v != "" {
			c.Format = v
		}
	}
	if env.Quality != "" {
		if v := os.Getenv(env.Quality); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Quality = n
			}
		}
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendImageMagick, BackendMuPDF:
	default:
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	if err := c.Options().Validate(); err != nil {
		return err
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100")
	}
	return nil
}
