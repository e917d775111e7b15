package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/types"
)

// Loader reads configuration from YAML files with environment overrides.
type Loader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

type viperLoader struct{}

// NewLoader creates a Loader backed by viper.
func NewLoader() Loader {
	return &viperLoader{}
}

// Load reads the given file. Environment variables with the CHAOSD_ prefix
// override file values, so CHAOSD_SERVER_ADDR overrides server.addr.
func (l *viperLoader) Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "reading config file", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "unmarshaling config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWithDefaults behaves like Load but falls back to defaults (still
// honoring environment overrides) when the file does not exist.
func (l *viperLoader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		v := newViper()
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "unmarshaling config", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return l.Load(path)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CHAOSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	v.SetDefault("engine.event_buffer_size", defaults.Engine.EventBufferSize)
	v.SetDefault("engine.hook_timeout", defaults.Engine.HookTimeout)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	return v
}
