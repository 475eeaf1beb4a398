// Package config loads the service configuration: a base config.toml, an
// optional per-environment overlay, and environment variable overrides,
// finalized with defaults and validation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/slidesmith/slidesmith/pkg/broker"
	"github.com/slidesmith/slidesmith/pkg/database"
	"github.com/slidesmith/slidesmith/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvSlidesmithEnv             = "SLIDESMITH_ENV"
	EnvSlidesmithShutdownTimeout = "SLIDESMITH_SHUTDOWN_TIMEOUT"
	EnvSlidesmithVersion         = "SLIDESMITH_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "SLIDESMITH_DB_HOST",
	Port:            "SLIDESMITH_DB_PORT",
	Name:            "SLIDESMITH_DB_NAME",
	User:            "SLIDESMITH_DB_USER",
	Password:        "SLIDESMITH_DB_PASSWORD",
	SSLMode:         "SLIDESMITH_DB_SSL_MODE",
	MaxOpenConns:    "SLIDESMITH_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "SLIDESMITH_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "SLIDESMITH_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "SLIDESMITH_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "SLIDESMITH_STORAGE_CONTAINER_NAME",
	ConnectionString: "SLIDESMITH_STORAGE_CONNECTION_STRING",
}

var brokerEnv = &broker.Env{
	URL:      "SLIDESMITH_BROKER_URL",
	Prefetch: "SLIDESMITH_BROKER_PREFETCH",
	Enabled:  "SLIDESMITH_BROKER_ENABLED",
}

// Config is the root configuration for the Slidesmith service.
type Config struct {
	Server          ServerConfig          `toml:"server"`
	Database        database.Config       `toml:"database"`
	Storage         storage.Config        `toml:"storage"`
	Broker          broker.Config         `toml:"broker"`
	Engine          EngineConfig          `toml:"engine"`
	API             APIConfig             `toml:"api"`
	Agent           gaconfig.AgentConfig  `toml:"agent"`
	SecondaryAgent  *gaconfig.AgentConfig `toml:"secondary_agent"`
	ShutdownTimeout string                `toml:"shutdown_timeout"`
	Version         string                `toml:"version"`
}

// Env returns the SLIDESMITH_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvSlidesmithEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// HasSecondaryAgent reports whether a secondary analysis backend is
// configured.
func (c *Config) HasSecondaryAgent() bool {
	return c.SecondaryAgent != nil && AgentConfigured(c.SecondaryAgent)
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
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
	if overlay.SecondaryAgent != nil {
		c.SecondaryAgent = overlay.SecondaryAgent
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Broker.Merge(&overlay.Broker)
	c.Engine.Merge(&overlay.Engine)
	c.API.Merge(&overlay.API)
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
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Broker.Finalize(brokerEnv); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if err := c.Engine.Finalize(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := FinalizeAgent(&c.Agent, primaryAgentEnv); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if c.SecondaryAgent != nil {
		if err := FinalizeAgent(c.SecondaryAgent, secondaryAgentEnv); err != nil {
			return fmt.Errorf("secondary_agent: %w", err)
		}
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
	if v := os.Getenv(EnvSlidesmithShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvSlidesmithVersion); v != "" {
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
	if env := os.Getenv(EnvSlidesmithEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
