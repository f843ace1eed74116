package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Adda-Baaj/akhbar/internal/logger"
)

const envPrefix = "AKHBAR"

// Config holds process configuration.
type Config struct {
	HTTP       HTTPConfig
	Log        LogConfig
	Sources    SourcesConfig
	Publishers PublishersConfig
	Ledger     LedgerConfig
	Refresh    RefreshConfig
	Enrich     EnrichConfig
}

// HTTPConfig covers the query surface listener and the outbound feed client.
// HTTPConfig covers the query surface listener and the outbound feed client.
// SourceDeadline bounds one newspaper's primary fetch plus all its fallbacks.
type HTTPConfig struct {
	Addr           string
	FetchTimeout   time.Duration
	SourceDeadline time.Duration
	UserAgent      string
}

type LogConfig struct {
	Level  string
	Format string
}

// SourcesConfig points at an optional Source Registry override file.
type SourcesConfig struct {
	File string
}

type PublishersConfig struct {
	File string
}

// LedgerConfig configures the bbolt delivery ledger. An empty path disables it.
type LedgerConfig struct {
	Path      string
	Retention time.Duration
}

// RefreshConfig configures background refreshes. An empty cron spec disables the scheduled warm-up.
type RefreshConfig struct {
	Cron    string
	Timeout time.Duration
}

type EnrichConfig struct {
	Enabled      bool
	RequestDelay time.Duration
}

// Load reads configuration from an optional .env file, an optional config file
// (AKHBAR_CONFIG) and AKHBAR_* environment variables, in increasing precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv(envPrefix + "_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", "0.0.0.0:8001")
	v.SetDefault("http.fetch_timeout", "30s")
	v.SetDefault("http.source_deadline", "45s")
	v.SetDefault("http.user_agent", "akhbar/1.0 (+https://github.com/Adda-Baaj/akhbar)")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("sources.file", "")
	v.SetDefault("publishers.file", "")
	v.SetDefault("ledger.path", "")
	v.SetDefault("ledger.retention", "168h")
	v.SetDefault("refresh.cron", "")
	v.SetDefault("refresh.timeout", "2m")
	v.SetDefault("enrich.enabled", false)
	v.SetDefault("enrich.request_delay", "200ms")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:           strings.TrimSpace(v.GetString("http.addr")),
			FetchTimeout:   v.GetDuration("http.fetch_timeout"),
			SourceDeadline: v.GetDuration("http.source_deadline"),
			UserAgent:      strings.TrimSpace(v.GetString("http.user_agent")),
		},
		Log: LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
		},
		Sources:    SourcesConfig{File: strings.TrimSpace(v.GetString("sources.file"))},
		Publishers: PublishersConfig{File: strings.TrimSpace(v.GetString("publishers.file"))},
		Ledger: LedgerConfig{
			Path:      strings.TrimSpace(v.GetString("ledger.path")),
			Retention: v.GetDuration("ledger.retention"),
		},
		Refresh: RefreshConfig{
			Cron:    strings.TrimSpace(v.GetString("refresh.cron")),
			Timeout: v.GetDuration("refresh.timeout"),
		},
		Enrich: EnrichConfig{
			Enabled:      v.GetBool("enrich.enabled"),
			RequestDelay: v.GetDuration("enrich.request_delay"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required fields are present and durations are sane.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.HTTP.FetchTimeout <= 0 {
		return errors.New("http.fetch_timeout must be positive")
	}
	if c.HTTP.SourceDeadline <= 0 {
		return errors.New("http.source_deadline must be positive")
	}
	if c.Refresh.Timeout <= 0 {
		return errors.New("refresh.timeout must be positive")
	}
	if c.Ledger.Retention <= 0 {
		return errors.New("ledger.retention must be positive")
	}
	if c.Enrich.RequestDelay < 0 {
		return errors.New("enrich.request_delay cannot be negative")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q not supported", c.Log.Format)
	}
	return nil
}
