package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/nexus/pkg/formatting"
	"github.com/JaimeStill/nexus/pkg/middleware"
	"github.com/JaimeStill/nexus/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "NEXUS_CORS_ENABLED",
	Origins:          "NEXUS_CORS_ORIGINS",
	AllowedMethods:   "NEXUS_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "NEXUS_CORS_ALLOWED_HEADERS",
	AllowCredentials: "NEXUS_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "NEXUS_CORS_MAX_AGE",
}

var paginationEnv = &pagination.Env{
	DefaultPageSize: "NEXUS_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "NEXUS_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, CORS, and pagination settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes. Finalize rejects
// sizes that do not parse, so zero means the config was never finalized.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, _ := formatting.ParseBytes(c.MaxUploadSize)
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS and pagination configs.
func (c *APIConfig) Finalize() error {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "50MB"
	}
	if v := os.Getenv("NEXUS_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("NEXUS_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}

	if !strings.HasPrefix(c.BasePath, "/") || len(c.BasePath) < 2 || strings.Contains(c.BasePath[1:], "/") {
		return fmt.Errorf("base_path must be a single segment such as /api: %q", c.BasePath)
	}
	if size, err := formatting.ParseBytes(c.MaxUploadSize); err != nil {
		return fmt.Errorf("max_upload_size: %w", err)
	} else if size <= 0 {
		return fmt.Errorf("max_upload_size must be positive: %q", c.MaxUploadSize)
	}

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
}
