package config

import (
	"fmt"
	"time"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/types"
)

// Config is the daemon configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// EngineConfig holds execution settings.
type EngineConfig struct {
	// EventBufferSize is the per-subscriber event queue depth.
	EventBufferSize int `mapstructure:"event_buffer_size" yaml:"event_buffer_size"`

	// HookTimeout bounds a single http_request or command hook action.
	HookTimeout time.Duration `mapstructure:"hook_timeout" yaml:"hook_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`

	// Format is one of text, json.
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Engine: EngineConfig{
			EventBufferSize: 64,
			HookTimeout:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "server.addr must not be empty")
	}
	if c.Server.ShutdownTimeout < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "server.shutdown_timeout must not be negative")
	}
	if c.Engine.EventBufferSize <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "engine.event_buffer_size must be positive")
	}
	if c.Engine.HookTimeout < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "engine.hook_timeout must not be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("logging.format %q is not one of text, json", c.Logging.Format))
	}
	return nil
}
