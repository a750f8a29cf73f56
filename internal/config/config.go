// Package config loads the review engine configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Source  SourceConfig  `yaml:"source"`
	Engine  EngineConfig  `yaml:"engine"`
	Server  ServerConfig  `yaml:"server"`
	Logger  LoggerConfig  `yaml:"logger"`
}

// StorageConfig holds the persisted cache location.
type StorageConfig struct {
	Path       string `yaml:"path"`
	QuotaBytes int64  `yaml:"quota_bytes"`
}

// SourceConfig holds memo host settings. MemosFile, when set, serves memos
// from a local JSON file instead of the host.
type SourceConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Token          string        `yaml:"token"`
	MemosFile      string        `yaml:"memos_file"`
	PageSize       int           `yaml:"page_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RatePerSec     float64       `yaml:"rate_per_sec"`
	Burst          int           `yaml:"burst"`
	MaxAttempts    int           `yaml:"max_attempts"`
}

// EngineConfig holds deck engine limits.
type EngineConfig struct {
	FetchBudget time.Duration `yaml:"fetch_budget"`
	PoolTTL     time.Duration `yaml:"pool_ttl"`
	DeckKeep    int           `yaml:"deck_keep"`
	HistoryCap  int           `yaml:"history_cap"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json, pretty
	Output string `yaml:"output"` // stderr, stdout, or a file path
}

// defaultDir returns $HOME/.memos-review, falling back to ".memos-review".
func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".memos-review"
	}
	return filepath.Join(home, ".memos-review")
}

// DefaultPath is the config file read when no path is given.
func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.yaml")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:       filepath.Join(defaultDir(), "review.db"),
			QuotaBytes: 5 << 20,
		},
		Source: SourceConfig{
			PageSize:       1000,
			RequestTimeout: 8 * time.Second,
			RatePerSec:     5,
			Burst:          2,
			MaxAttempts:    3,
		},
		Engine: EngineConfig{
			FetchBudget: 4 * time.Second,
			PoolTTL:     6 * time.Hour,
			DeckKeep:    10,
			HistoryCap:  5000,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8787"},
		Logger: LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps MEMOS_REVIEW_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEMOS_REVIEW_DB"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("MEMOS_REVIEW_QUOTA_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Storage.QuotaBytes = n
		}
	}
	if v := os.Getenv("MEMOS_REVIEW_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("MEMOS_REVIEW_TOKEN"); v != "" {
		cfg.Source.Token = v
	}
	if v := os.Getenv("MEMOS_REVIEW_MEMOS_FILE"); v != "" {
		cfg.Source.MemosFile = v
	}
	if v := os.Getenv("MEMOS_REVIEW_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MEMOS_REVIEW_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("MEMOS_REVIEW_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
}
