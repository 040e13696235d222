// Package config loads server configuration from defaults, an optional
// TOML file and DEBTBOOK_* environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Guest storage backends.
const (
	GuestBackendSQLite = "sqlite"
	GuestBackendRedis  = "redis"
	GuestBackendMemory = "memory"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Guest    GuestConfig    `mapstructure:"guest"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds the cloud store settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// GuestConfig selects the key-value store behind guest mode.
type GuestConfig struct {
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	RedisAddr string `mapstructure:"redis_addr"`
}

// AuthConfig holds token settings.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration. The file named by DEBTBOOK_CONFIG is used if
// set; otherwise ./debtbook.toml is read when present. Env var overrides
// use prefix DEBTBOOK_ with dots replaced by underscores, e.g.
// DEBTBOOK_SERVER_PORT.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.path", "./data/debtbook.db")
	v.SetDefault("guest.backend", GuestBackendSQLite)
	v.SetDefault("guest.path", "./data/guest.db")
	v.SetDefault("guest.redis_addr", "localhost:6379")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("log.level", "info")

	v.SetConfigType("toml")
	cfgPath := os.Getenv("DEBTBOOK_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("debtbook")
	}

	v.SetEnvPrefix("DEBTBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values that have no usable default.
func (c Config) Validate() error {
	switch c.Guest.Backend {
	case GuestBackendSQLite, GuestBackendRedis, GuestBackendMemory:
	default:
		return fmt.Errorf("unknown guest backend %q", c.Guest.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	return nil
}
