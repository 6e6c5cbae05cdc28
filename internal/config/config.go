// Package config loads the application configuration from an optional
// config.yaml plus FERRET_* environment variables, and initializes the
// process-wide logger.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	CSE      CSEConfig      `yaml:"cse" mapstructure:"cse"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Audit    AuditConfig    `yaml:"audit" mapstructure:"audit"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// CSEConfig holds Google Custom Search API credentials.
// Set via FERRET_CSE_KEY and FERRET_CSE_CX.
type CSEConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
	CX  string `yaml:"cx" mapstructure:"cx"`
}

// SearchConfig configures the search backend and its pacing.
type SearchConfig struct {
	// Engine selects the backend: cse, scrape or sitemap.
	Engine   string `yaml:"engine" mapstructure:"engine"`
	SleepMS  int    `yaml:"sleep_ms" mapstructure:"sleep_ms"`
	PageSize int    `yaml:"page_size" mapstructure:"page_size"`
}

// AuditConfig selects and configures the audit trail sink.
type AuditConfig struct {
	// Backend is one of csv, sqlite or postgres.
	Backend string `yaml:"backend" mapstructure:"backend"`
	// Path is the file for the csv and sqlite backends.
	Path string `yaml:"path" mapstructure:"path"`
	// DatabaseURL is the DSN for the postgres backend.
	// Set via FERRET_AUDIT_DATABASE_URL.
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures the page fetcher.
type FetchConfig struct {
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Fingerprint   string `yaml:"fingerprint" mapstructure:"fingerprint"`
	ProxyFile     string `yaml:"proxy_file" mapstructure:"proxy_file"`
	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// DownloadConfig configures the asset download command.
type DownloadConfig struct {
	OutDir      string `yaml:"out_dir" mapstructure:"out_dir"`
	ZipName     string `yaml:"zip_name" mapstructure:"zip_name"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Port    int  `yaml:"port" mapstructure:"port"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml (if present) and the environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FERRET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so AutomaticEnv picks them up
	// during Unmarshal.
	v.SetDefault("cse.key", "")
	v.SetDefault("cse.cx", "")
	v.SetDefault("audit.database_url", "")
	v.SetDefault("fetch.proxy_file", "")
	v.SetDefault("search.engine", "cse")
	v.SetDefault("search.sleep_ms", 1100)
	v.SetDefault("search.page_size", 8)
	v.SetDefault("audit.backend", "csv")
	v.SetDefault("audit.path", "data/ENRICHMENT_REPORT.csv")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.fingerprint", "chrome")
	v.SetDefault("download.out_dir", "CATALOGO")
	v.SetDefault("download.zip_name", "CATALOGO.zip")
	v.SetDefault("download.concurrency", 4)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}

// InitLogger installs the process-wide slog default per the log config.
func InitLogger(cfg LogConfig) error {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("config: unknown log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("config: unknown log format %q", cfg.Format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
