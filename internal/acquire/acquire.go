// Package acquire builds the candidate memo pool from a paged source.
package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rcliao/memos-daily-review/internal/model"
	"github.com/rcliao/memos-daily-review/internal/normalize"
	"github.com/rcliao/memos-daily-review/internal/source"
)

// DefaultBudget is the soft wall-clock limit of one acquisition.
const DefaultBudget = 4 * time.Second

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// PoolCache is the pool storage the acquirer reads through.
type PoolCache interface {
	GetPool(ctx context.Context, tr model.TimeRange) (model.Pool, bool)
	PutPool(ctx context.Context, tr model.TimeRange, memos []model.Memo) model.Pool
}

// Options configures an Acquirer. Zero values select the defaults.
type Options struct {
	Budget time.Duration
	Clock  Clock
	Logger *slog.Logger
}

// Acquirer fetches and caches memo pools.
type Acquirer struct {
	src    source.Source
	cache  PoolCache
	budget time.Duration
	clock  Clock
	logger *slog.Logger
}

// New creates an Acquirer.
func New(src source.Source, cache PoolCache, opts Options) *Acquirer {
	a := &Acquirer{src: src, cache: cache, budget: opts.Budget, clock: opts.Clock, logger: opts.Logger}
	if a.budget <= 0 {
		a.budget = DefaultBudget
	}
	if a.clock == nil {
		a.clock = systemClock{}
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	return a
}

// AcquirePool returns the cached pool for tr when it is fresh, otherwise
// fetches until desired memos are collected, the listing ends, or the time
// budget runs out. The fetched pool is cached.
func (a *Acquirer) AcquirePool(ctx context.Context, tr model.TimeRange, desired int) ([]model.Memo, error) {
	if pool, ok := a.cache.GetPool(ctx, tr); ok {
		a.logger.Debug("pool cache hit", "time_range", tr, "memos", len(pool.Memos))
		return pool.Memos, nil
	}
	return a.Refresh(ctx, tr, desired)
}

// Refresh fetches a new pool for tr regardless of the cached one.
func (a *Acquirer) Refresh(ctx context.Context, tr model.TimeRange, desired int) ([]model.Memo, error) {
	start := a.clock.Now()
	seen := make(map[string]bool)
	var memos []model.Memo

	token := ""
	pages := 0
	for {
		page, err := a.src.FetchPage(ctx, tr, token)
		if err != nil {
			return nil, fmt.Errorf("acquire pool page %d: %w", pages+1, err)
		}
		pages++

		for _, m := range normalize.NormalizePage(page.Memos) {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			memos = append(memos, m)
		}

		elapsed := a.clock.Now().Sub(start)
		stop := ""
		switch {
		case page.NextPageToken == "" || page.NextPageToken == token:
			stop = "exhausted"
		case len(memos) >= desired:
			stop = "desired size reached"
		case elapsed > a.budget:
			stop = "time budget spent"
		}
		if stop != "" {
			a.logger.Info("pool acquired",
				"time_range", tr,
				"memos", len(memos),
				"pages", pages,
				"elapsed", elapsed,
				"stop", stop,
			)
			break
		}
		token = page.NextPageToken
	}

	a.cache.PutPool(ctx, tr, memos)
	return memos, nil
}
