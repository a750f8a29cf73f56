// Package cli implements the memos-review CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/memos-daily-review/internal/acquire"
	"github.com/rcliao/memos-daily-review/internal/cache"
	"github.com/rcliao/memos-daily-review/internal/config"
	"github.com/rcliao/memos-daily-review/internal/engine"
	"github.com/rcliao/memos-daily-review/internal/logger"
	"github.com/rcliao/memos-daily-review/internal/model"
	"github.com/rcliao/memos-daily-review/internal/source"
	"github.com/rcliao/memos-daily-review/internal/store"
)

// Version is set at build time.
var Version = "dev"

var (
	configPath string
	dbPath     string
	formatFlag string
	ephemeral  bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memos-review",
	Short: "Daily review decks for your memos",
	Long:  "Builds a small, reproducible daily deck of memos to revisit, favouring the ones you have not seen in a while.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.memos-review/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $MEMOS_REVIEW_DB or ~/.memos-review/review.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep review state in memory only; nothing is written to disk")
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	return cfg, nil
}

// app bundles the wired components for one command run.
type app struct {
	cfg    *config.Config
	store  store.Store
	cache  *cache.Cache
	engine *engine.Engine
	logger *slog.Logger
	closer func() error
}

func (a *app) Close() {
	a.store.Close()
	a.closer()
}

func openStore() (store.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if ephemeral {
		return store.NewMemoryStore(cfg.Storage.QuotaBytes), cfg, nil
	}
	s, err := store.NewSQLiteStore(cfg.Storage.Path, cfg.Storage.QuotaBytes)
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

func openApp() (*app, error) {
	s, cfg, err := openStore()
	if err != nil {
		return nil, err
	}

	log, closer, err := logger.New(cfg.Logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	src, err := newSource(cfg, log)
	if err != nil {
		s.Close()
		closer()
		return nil, err
	}

	c := cache.New(s, cache.Options{
		PoolTTL:    cfg.Engine.PoolTTL,
		DeckKeep:   cfg.Engine.DeckKeep,
		HistoryCap: cfg.Engine.HistoryCap,
		Logger:     log.With("component", "cache"),
	})
	acq := acquire.New(src, c, acquire.Options{
		Budget: cfg.Engine.FetchBudget,
		Logger: log.With("component", "acquire"),
	})
	e := engine.New(c, acq, engine.Options{Logger: log.With("component", "engine")})

	return &app{cfg: cfg, store: s, cache: c, engine: e, logger: log, closer: closer}, nil
}

func newSource(cfg *config.Config, log *slog.Logger) (source.Source, error) {
	sc := cfg.Source
	switch {
	case sc.MemosFile != "":
		return source.LoadStaticSource(sc.MemosFile, sc.PageSize)
	case sc.BaseURL != "":
		return source.NewHTTPSource(source.HTTPConfig{
			BaseURL:        sc.BaseURL,
			PageSize:       sc.PageSize,
			RequestTimeout: sc.RequestTimeout,
			RatePerSec:     sc.RatePerSec,
			Burst:          sc.Burst,
			MaxAttempts:    sc.MaxAttempts,
		}, source.StaticToken(sc.Token), nil, log.With("component", "source")), nil
	default:
		return unconfiguredSource{}, nil
	}
}

// unconfiguredSource fails every fetch until a source is configured.
type unconfiguredSource struct{}

func (unconfiguredSource) FetchPage(context.Context, model.TimeRange, string) (source.Page, error) {
	return source.Page{}, &model.SourceError{
		Op:  "list memos",
		Err: fmt.Errorf("%w: no memo source configured (set source.base_url or source.memos_file)", model.ErrSourceRejected),
	}
}

func mustApp() *app {
	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	return a
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func textOutput() bool { return formatFlag == "text" }

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
