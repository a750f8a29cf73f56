// Package engine serves daily review decks: it reads through the deck
// cache, acquires pools, assembles decks and records review history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"github.com/rcliao/memos-daily-review/internal/cache"
	"github.com/rcliao/memos-daily-review/internal/deck"
	"github.com/rcliao/memos-daily-review/internal/model"
	"github.com/rcliao/memos-daily-review/internal/normalize"
)

// ErrInvalidRequest marks caller errors such as an out-of-range count.
var ErrInvalidRequest = errors.New("invalid request")

// Pool sizing bounds.
const (
	poolPerCard = 40
	minPoolSize = 200
	maxPoolSize = 3000
)

// DesiredPoolSize is how many memos to acquire for a deck of count cards.
// The unbounded range gets twice the budget.
func DesiredPoolSize(count int, tr model.TimeRange) int {
	size := min(max(count*poolPerCard, minPoolSize), maxPoolSize)
	if tr == model.RangeAll {
		size *= 2
	}
	return size
}

// PoolSource supplies memo pools.
type PoolSource interface {
	AcquirePool(ctx context.Context, tr model.TimeRange, desired int) ([]model.Memo, error)
	Refresh(ctx context.Context, tr model.TimeRange, desired int) ([]model.Memo, error)
}

// Observer is notified of deck state transitions. err is set for
// StateError.
type Observer interface {
	DeckStateChanged(key string, state model.DeckState, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(key string, state model.DeckState, err error)

func (f ObserverFunc) DeckStateChanged(key string, state model.DeckState, err error) {
	f(key, state, err)
}

// Request identifies a deck. An empty Day means today.
type Request struct {
	Day       string
	TimeRange model.TimeRange
	Count     int
	Batch     int
}

// Result is a retrieved deck and the state it settled in.
type Result struct {
	Deck  model.Deck      `json:"deck"`
	State model.DeckState `json:"state"`
	Hit   bool            `json:"hit"`
}

// Options configures an Engine.
type Options struct {
	Logger   *slog.Logger
	Observer Observer
	Builder  *deck.Builder
	Now      func() time.Time
}

// Engine is safe for concurrent use.
type Engine struct {
	cache    *cache.Cache
	pools    PoolSource
	builder  *deck.Builder
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	group    singleflight.Group
}

// New creates an Engine.
func New(c *cache.Cache, pools PoolSource, opts Options) *Engine {
	e := &Engine{
		cache:    c,
		pools:    pools,
		builder:  opts.Builder,
		observer: opts.Observer,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if e.builder == nil {
		e.builder = deck.NewBuilder()
	}
	if e.observer == nil {
		e.observer = ObserverFunc(func(string, model.DeckState, error) {})
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Today returns the current calendar day.
func (e *Engine) Today() string { return model.Day(e.now()) }

func (e *Engine) normalizeRequest(req Request) (Request, error) {
	if req.Day == "" {
		req.Day = e.Today()
	} else if _, err := time.Parse(model.DayLayout, req.Day); err != nil {
		return req, fmt.Errorf("%w: day %q is not YYYY-MM-DD", ErrInvalidRequest, req.Day)
	}
	if req.TimeRange == "" {
		req.TimeRange = model.RangeAll
	}
	if err := (model.Settings{TimeRange: req.TimeRange, Count: req.Count}).Validate(); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Batch < 0 {
		return req, fmt.Errorf("%w: negative batch %d", ErrInvalidRequest, req.Batch)
	}
	return req, nil
}

// GetDeck returns the deck for req, building and caching it on a miss.
// A failed acquisition is returned as an error; no partial deck is ever
// produced.
func (e *Engine) GetDeck(ctx context.Context, req Request) (Result, error) {
	req, err := e.normalizeRequest(req)
	if err != nil {
		return Result{}, err
	}
	key := model.DeckKey(req.Day, req.TimeRange, req.Count, req.Batch)

	if d, ok := e.cache.GetDeck(ctx, key); ok {
		e.observer.DeckStateChanged(key, model.StateReady, nil)
		return Result{Deck: d, State: model.StateReady, Hit: true}, nil
	}
	e.observer.DeckStateChanged(key, model.StateMiss, nil)

	v, err, shared := e.group.Do(key, func() (any, error) {
		return e.build(ctx, req, key)
	})
	if err != nil {
		return Result{}, err
	}
	if shared {
		e.logger.Debug("deck build shared", "key", key)
	}
	return v.(Result), nil
}

func (e *Engine) build(ctx context.Context, req Request, key string) (Result, error) {
	e.observer.DeckStateChanged(key, model.StateLoading, nil)

	// A concurrent flight may have sealed the deck since the first lookup.
	if d, ok := e.cache.GetDeck(ctx, key); ok {
		e.observer.DeckStateChanged(key, model.StateReady, nil)
		return Result{Deck: d, State: model.StateReady, Hit: true}, nil
	}

	pool, err := e.pools.AcquirePool(ctx, req.TimeRange, DesiredPoolSize(req.Count, req.TimeRange))
	if err != nil {
		err = fmt.Errorf("build deck %s: %w", key, err)
		e.logger.Error("deck build failed", "key", key, "category", model.CategoryOf(err), "error", err)
		e.observer.DeckStateChanged(key, model.StateError, err)
		return Result{}, err
	}

	settings := model.Settings{TimeRange: req.TimeRange, Count: req.Count}
	memos := e.builder.Build(pool, settings, req.Day, req.Batch, e.cache.GetHistory(ctx))

	d := model.Deck{
		Key:       key,
		Day:       req.Day,
		TimeRange: req.TimeRange,
		Count:     req.Count,
		Batch:     req.Batch,
		Memos:     memos,
		CreatedAt: e.now().UTC(),
	}
	if len(memos) == 0 {
		e.logger.Info("no eligible memos", "key", key, "pool", len(pool))
		e.observer.DeckStateChanged(key, model.StateEmpty, nil)
		return Result{Deck: d, State: model.StateEmpty}, nil
	}

	d.Generation = ulid.Make().String()
	e.cache.PutDeck(ctx, d)
	e.logger.Info("deck built", "key", key, "generation", d.Generation, "memos", len(memos), "pool", len(pool))
	e.observer.DeckStateChanged(key, model.StateReady, nil)
	return Result{Deck: d, State: model.StateReady}, nil
}

// Current returns the deck for the persisted settings at the current batch
// of day.
func (e *Engine) Current(ctx context.Context, day string) (Result, error) {
	if day == "" {
		day = e.Today()
	}
	s := e.cache.GetSettings(ctx)
	return e.GetDeck(ctx, Request{Day: day, TimeRange: s.TimeRange, Count: s.Count, Batch: e.cache.Batch(ctx, day)})
}

// Shuffle builds a fresh deck for day under the persisted settings using
// the next batch number. The batch cursor advances only when the build
// succeeds.
func (e *Engine) Shuffle(ctx context.Context, day string) (Result, error) {
	if day == "" {
		day = e.Today()
	}
	s := e.cache.GetSettings(ctx)
	batch := e.cache.Batch(ctx, day) + 1
	e.logger.Debug("shuffle", "day", day, "batch", batch)

	res, err := e.GetDeck(ctx, Request{Day: day, TimeRange: s.TimeRange, Count: s.Count, Batch: batch})
	if err != nil {
		return res, err
	}
	e.cache.SetBatch(ctx, day, batch)
	return res, nil
}

// ApplySettings validates and persists s, resets the batch to 0 and drops
// today's cached batch-0 deck for s so the next request rebuilds.
func (e *Engine) ApplySettings(ctx context.Context, s model.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := e.cache.PutSettings(ctx, s); err != nil {
		return err
	}
	e.cache.InvalidateDeck(ctx, model.DeckKey(e.Today(), s.TimeRange, s.Count, 0))
	e.logger.Info("settings changed", "time_range", s.TimeRange, "count", s.Count)
	return nil
}

// OnSettingsChanged persists s and returns today's batch-0 deck for it,
// rebuilt from scratch.
func (e *Engine) OnSettingsChanged(ctx context.Context, s model.Settings) (Result, error) {
	if err := e.ApplySettings(ctx, s); err != nil {
		return Result{}, err
	}
	return e.GetDeck(ctx, Request{Day: e.Today(), TimeRange: s.TimeRange, Count: s.Count})
}

// Settings returns the persisted settings.
func (e *Engine) Settings(ctx context.Context) model.Settings {
	return e.cache.GetSettings(ctx)
}

// MarkViewed records that memoID was shown on day.
func (e *Engine) MarkViewed(ctx context.Context, memoID, day string) (model.HistoryEntry, error) {
	if memoID == "" {
		return model.HistoryEntry{}, fmt.Errorf("%w: empty memo id", ErrInvalidRequest)
	}
	if day == "" {
		day = e.Today()
	} else if _, err := time.Parse(model.DayLayout, day); err != nil {
		return model.HistoryEntry{}, fmt.Errorf("%w: day %q is not YYYY-MM-DD", ErrInvalidRequest, day)
	}
	h := e.cache.UpdateHistory(ctx, func(h model.History) { h.Record(memoID, day) })
	return h[memoID], nil
}

// History returns the review history.
func (e *Engine) History(ctx context.Context) model.History {
	return e.cache.GetHistory(ctx)
}

// MemoEdited propagates an edited memo into the cached pool and decks.
func (e *Engine) MemoEdited(ctx context.Context, raw model.RawMemo) error {
	m, ok := normalize.Normalize(raw)
	if !ok {
		return fmt.Errorf("%w: memo has no identifier", ErrInvalidRequest)
	}
	e.cache.ReplaceMemo(ctx, m)
	return nil
}

// MemoDeleted removes a memo from the cached pool and decks.
func (e *Engine) MemoDeleted(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty memo id", ErrInvalidRequest)
	}
	e.cache.RemoveMemo(ctx, id)
	return nil
}

// RefreshPool re-fetches the pool for tr sized for the persisted count.
func (e *Engine) RefreshPool(ctx context.Context, tr model.TimeRange) ([]model.Memo, error) {
	if !model.ValidRanges[tr] {
		return nil, fmt.Errorf("%w: time range %q", ErrInvalidRequest, tr)
	}
	s := e.cache.GetSettings(ctx)
	return e.pools.Refresh(ctx, tr, DesiredPoolSize(s.Count, tr))
}

// Pool returns the cached pool for tr, if fresh.
func (e *Engine) Pool(ctx context.Context, tr model.TimeRange) (model.Pool, bool) {
	return e.cache.GetPool(ctx, tr)
}
