package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a
// *ValidationError listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}

	if cfg.Storage.Path == "" {
		ve.Add("storage.path is required")
	}
	if cfg.Storage.QuotaBytes <= 0 {
		ve.Add("storage.quota_bytes must be positive, got %d", cfg.Storage.QuotaBytes)
	}

	s := cfg.Source
	if s.PageSize <= 0 {
		ve.Add("source.page_size must be positive, got %d", s.PageSize)
	}
	if s.RequestTimeout <= 0 {
		ve.Add("source.request_timeout must be positive, got %s", s.RequestTimeout)
	}
	if s.RatePerSec <= 0 {
		ve.Add("source.rate_per_sec must be positive, got %g", s.RatePerSec)
	}
	if s.Burst <= 0 {
		ve.Add("source.burst must be positive, got %d", s.Burst)
	}
	if s.MaxAttempts <= 0 {
		ve.Add("source.max_attempts must be positive, got %d", s.MaxAttempts)
	}
	if s.BaseURL != "" && !strings.HasPrefix(s.BaseURL, "http://") && !strings.HasPrefix(s.BaseURL, "https://") {
		ve.Add("source.base_url must be an http(s) URL, got %q", s.BaseURL)
	}

	e := cfg.Engine
	if e.FetchBudget <= 0 {
		ve.Add("engine.fetch_budget must be positive, got %s", e.FetchBudget)
	}
	if e.PoolTTL <= 0 {
		ve.Add("engine.pool_ttl must be positive, got %s", e.PoolTTL)
	}
	if e.DeckKeep <= 0 {
		ve.Add("engine.deck_keep must be positive, got %d", e.DeckKeep)
	}
	if e.HistoryCap <= 0 {
		ve.Add("engine.history_cap must be positive, got %d", e.HistoryCap)
	}

	if cfg.Server.Addr == "" {
		ve.Add("server.addr is required")
	}

	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json", "pretty":
	default:
		ve.Add("logger.format must be text, json or pretty, got %q", cfg.Logger.Format)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}
