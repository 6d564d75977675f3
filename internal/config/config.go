package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/nexus/internal/pipeline"
	"github.com/JaimeStill/nexus/internal/worker"
	"github.com/JaimeStill/nexus/pkg/database"
	"github.com/JaimeStill/nexus/pkg/queue"
	"github.com/JaimeStill/nexus/pkg/render"
	"github.com/JaimeStill/nexus/pkg/storage"
	"github.com/JaimeStill/nexus/pkg/vision"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"
	DotEnvFile           = ".env"

	EnvNexusEnv             = "NEXUS_ENV"
	EnvNexusShutdownTimeout = "NEXUS_SHUTDOWN_TIMEOUT"
	EnvNexusVersion         = "NEXUS_VERSION"
)

// DatabaseEnv names the environment variables that override database
// settings. The migrate command reads the same variables.
var DatabaseEnv = &database.Env{
	DSN:             "NEXUS_DB_DSN",
	Host:            "NEXUS_DB_HOST",
	Port:            "NEXUS_DB_PORT",
	Name:            "NEXUS_DB_NAME",
	User:            "NEXUS_DB_USER",
	Password:        "NEXUS_DB_PASSWORD",
	SSLMode:         "NEXUS_DB_SSL_MODE",
	MaxOpenConns:    "NEXUS_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "NEXUS_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "NEXUS_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "NEXUS_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Provider:         "NEXUS_STORAGE_PROVIDER",
	Container:        "NEXUS_STORAGE_CONTAINER",
	ConnectionString: "NEXUS_STORAGE_CONNECTION_STRING",
	Endpoint:         "NEXUS_STORAGE_ENDPOINT",
	AccessKey:        "NEXUS_STORAGE_ACCESS_KEY",
	SecretKey:        "NEXUS_STORAGE_SECRET_KEY",
	UseSSL:           "NEXUS_STORAGE_USE_SSL",
	Root:             "NEXUS_STORAGE_ROOT",
}

var queueEnv = &queue.Env{
	Provider:     "NEXUS_QUEUE_PROVIDER",
	Name:         "NEXUS_QUEUE_NAME",
	Addr:         "NEXUS_QUEUE_ADDR",
	Password:     "NEXUS_QUEUE_PASSWORD",
	DB:           "NEXUS_QUEUE_DB",
	URL:          "NEXUS_QUEUE_URL",
	BlockTimeout: "NEXUS_QUEUE_BLOCK_TIMEOUT",
	Prefetch:     "NEXUS_QUEUE_PREFETCH",
}

var visionEnv = &vision.Env{
	BaseURL:     "NEXUS_VISION_BASE_URL",
	APIKey:      "NEXUS_VISION_API_KEY",
	Model:       "NEXUS_VISION_MODEL",
	Prompt:      "NEXUS_VISION_PROMPT",
	MaxTokens:   "NEXUS_VISION_MAX_TOKENS",
	MaxAttempts: "NEXUS_VISION_MAX_ATTEMPTS",
	BaseDelay:   "NEXUS_VISION_BASE_DELAY",
	MaxDelay:    "NEXUS_VISION_MAX_DELAY",
	Timeout:     "NEXUS_VISION_TIMEOUT",
}

var renderEnv = &render.Env{
	Backend: "NEXUS_RENDER_BACKEND",
	DPI:     "NEXUS_RENDER_DPI",
	Format:  "NEXUS_RENDER_FORMAT",
	Quality: "NEXUS_RENDER_QUALITY",
}

var pipelineEnv = &pipeline.Env{
	FanOut:            "NEXUS_PIPELINE_FAN_OUT",
	PersistRetryDelay: "NEXUS_PIPELINE_PERSIST_RETRY_DELAY",
}

var workerEnv = &worker.Env{
	Count:      "NEXUS_WORKER_COUNT",
	JobTimeout: "NEXUS_WORKER_JOB_TIMEOUT",
}

// Config is the root configuration for the Nexus service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	Queue           queue.Config    `toml:"queue"`
	Vision          vision.Config   `toml:"vision"`
	Render          render.Config   `toml:"render"`
	Pipeline        pipeline.Config `toml:"pipeline"`
	Worker          worker.Config   `toml:"worker"`
	API             APIConfig       `toml:"api"`
	Log             LogConfig       `toml:"log"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the NEXUS_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvNexusEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// LoadDotEnv loads variables from a .env file in the working directory,
// if one exists. Variables already set in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", DotEnvFile, err)
	}
	return nil
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Queue.Merge(&overlay.Queue)
	c.Vision.Merge(&overlay.Vision)
	c.Render.Merge(&overlay.Render)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Worker.Merge(&overlay.Worker)
	c.API.Merge(&overlay.API)
	c.Log.Merge(&overlay.Log)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(DatabaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Queue.Finalize(queueEnv); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if err := c.Vision.Finalize(visionEnv); err != nil {
		return fmt.Errorf("vision: %w", err)
	}
	if err := c.Render.Finalize(renderEnv); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := c.Pipeline.Finalize(pipelineEnv); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Worker.Finalize(workerEnv); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Log.Finalize(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvNexusShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvNexusVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvNexusEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
