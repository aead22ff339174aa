package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds the service configuration.
type Config struct {
	// Server configuration
	Host     string `env:"HOST" envDefault:"127.0.0.1"`
	Port     int    `env:"PORT" envDefault:"8069"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Optional surfaces
	DocsEnabled    bool `env:"API_DOCS_ENABLED" envDefault:"false"`
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"false"`

	// ProjectID enables Cloud Trace correlation in log entries.
	ProjectID string `env:"GOOGLE_CLOUD_PROJECT"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	Timeouts TimeoutConfig
}

// TimeoutConfig holds HTTP server timeouts.
type TimeoutConfig struct {
	Read       time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	ReadHeader time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"2s"`
	Write      time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	Idle       time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	Shutdown   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads optional dotenv files (".env" when none are given) and then
// parses the environment. Variables already set in the environment win over
// file values. Missing files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return Parse()
}

// Parse reads configuration from environment variables only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if len(c.CORSAllowedOrigins) == 0 {
		return errors.New("at least one CORS origin is required")
	}

	timeouts := []struct {
		name  string
		value time.Duration
	}{
		{"READ_TIMEOUT", c.Timeouts.Read},
		{"READ_HEADER_TIMEOUT", c.Timeouts.ReadHeader},
		{"WRITE_TIMEOUT", c.Timeouts.Write},
		{"IDLE_TIMEOUT", c.Timeouts.Idle},
		{"SHUTDOWN_TIMEOUT", c.Timeouts.Shutdown},
	}
	for _, t := range timeouts {
		if t.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", t.name, t.value)
		}
	}

	return nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
