// Package config provides configuration management for the reporting tool.
//
// Configuration is loaded from:
// 1. .env file in the working directory (optional)
// 2. config.yaml file (optional)
// 3. Environment variables (POSTGRES_* for the database, SERVER_PORT, LOG_LEVEL, ...)
// 4. Default values
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	// UnsafeAllowAllOrigins honours "*" in AllowedOrigins and turns
	// credentials off. Local experiments only.
	UnsafeAllowAllOrigins bool `mapstructure:"unsafe_allow_all_origins"`
}

// DatabaseConfig contains storage connection settings.
type DatabaseConfig struct {
	// URL overrides the individual connection fields when set.
	URL string `mapstructure:"url"`

	Driver   string `mapstructure:"driver"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Server   string `mapstructure:"server"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`

	// Pool sizing. Zero keeps the pgxpool defaults.
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`

	// Echo prints every SQL statement (bundebug).
	Echo               bool          `mapstructure:"echo"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`

	// AutoCreate creates missing tables on startup. Development only.
	AutoCreate bool `mapstructure:"auto_create"`
}

// DSN returns the connection string for the configured driver.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Driver == DriverSQLite {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared", c.Name)
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		c.User, c.Password, c.Server, c.Name, sslmode,
	)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	PoolSize            int           `mapstructure:"pool_size"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
}

// envBindings maps config keys to environment variable names that do not
// follow the KEY_PATH convention.
var envBindings = map[string][]string{
	"database.url":      {"DATABASE_URL"},
	"database.driver":   {"DATABASE_DRIVER"},
	"database.user":     {"POSTGRES_USER"},
	"database.password": {"POSTGRES_PASSWORD"},
	"database.server":   {"POSTGRES_SERVER"},
	"database.name":     {"POSTGRES_DB"},
}

// Load reads configuration from .env, config file and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/reportingtool")

	// Maps nested config: server.port → SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver %q is not supported (want %s or %s)",
			c.Database.Driver, DriverPostgres, DriverSQLite)
	}
	if c.Database.URL == "" {
		if c.Database.Name == "" {
			return fmt.Errorf("database.name must not be empty")
		}
		if c.Database.Driver == DriverPostgres && c.Database.Server == "" {
			return fmt.Errorf("database.server must not be empty")
		}
	}
	if c.Database.MinConns > c.Database.MaxConns && c.Database.MaxConns > 0 {
		return fmt.Errorf("database.min_conns (%d) exceeds database.max_conns (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("server.allow_credentials", true)
	v.SetDefault("server.unsafe_allow_all_origins", false)

	// Database
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.server", "localhost")
	v.SetDefault("database.name", "reportingtool")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 0)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.echo", false)
	v.SetDefault("database.slow_query_threshold", "500ms")
	v.SetDefault("database.auto_create", false)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Worker Pool
	v.SetDefault("worker.pool_size", 16)
	v.SetDefault("worker.health_check_interval", "30s")
}
