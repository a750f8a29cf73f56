// Package cache persists pools, decks, review history and settings as
// versioned JSON blobs on a store.Store. Reads never fail: absent, expired or
// malformed state reads as a miss. Writes are best-effort and degrade the
// cache when the medium is full.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rcliao/memos-daily-review/internal/model"
	"github.com/rcliao/memos-daily-review/internal/store"
)

// Keys of the persisted blobs.
const (
	KeySettings = "memos-daily-review/settings"
	KeyPool     = "memos-daily-review/pool"
	KeyDecks    = "memos-daily-review/decks"
	KeyHistory  = "memos-daily-review/history"
)

const currentVersion = 1

const (
	DefaultPoolTTL    = 6 * time.Hour
	DefaultDeckKeep   = 10
	DefaultHistoryCap = 5000

	degradedDeckKeep   = 3
	degradedHistoryCap = 1000
)

// Options configures a Cache. Zero values select the defaults.
type Options struct {
	PoolTTL    time.Duration
	DeckKeep   int
	HistoryCap int
	Logger     *slog.Logger
	Now        func() time.Time
}

// Cache owns every persisted review structure.
type Cache struct {
	mu         sync.Mutex
	store      store.Store
	poolTTL    time.Duration
	deckKeep   int
	historyCap int
	log        *slog.Logger
	now        func() time.Time
	ladder     []degradeStep
}

// New creates a Cache over s.
func New(s store.Store, opts Options) *Cache {
	c := &Cache{
		store:      s,
		poolTTL:    opts.PoolTTL,
		deckKeep:   opts.DeckKeep,
		historyCap: opts.HistoryCap,
		log:        opts.Logger,
		now:        opts.Now,
	}
	if c.poolTTL <= 0 {
		c.poolTTL = DefaultPoolTTL
	}
	if c.deckKeep <= 0 {
		c.deckKeep = DefaultDeckKeep
	}
	if c.historyCap <= 0 {
		c.historyCap = DefaultHistoryCap
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.ladder = []degradeStep{
		{name: "trim-decks", apply: c.trimDecks},
		{name: "drop-pool", apply: c.dropPool},
		{name: "prune-history", apply: c.pruneHistory},
	}
	return c
}

// header carries the schema version of every blob.
type header struct {
	Version int `json:"version"`
}

func (h *header) stamp() { h.Version = currentVersion }

type versioned interface {
	stamp()
	check() error
}

// load reads key into dst and reports whether dst holds usable state.
// Malformed blobs and blobs of unknown versions are deleted. Legacy blobs
// without a version are upgraded in place when they decode cleanly.
func (c *Cache) load(ctx context.Context, key string, dst versioned) bool {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}

	var probe struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		c.discard(ctx, key, err)
		return false
	}
	version := 0
	if probe.Version != nil {
		version = *probe.Version
	}

	switch version {
	case currentVersion:
		if err := json.Unmarshal(data, dst); err != nil {
			c.discard(ctx, key, err)
			return false
		}
	case 0:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil {
			c.discard(ctx, key, fmt.Errorf("legacy blob: %w", err))
			return false
		}
	default:
		c.discard(ctx, key, fmt.Errorf("unknown version %d", version))
		return false
	}

	if err := dst.check(); err != nil {
		c.discard(ctx, key, err)
		return false
	}

	if version == 0 {
		dst.stamp()
		if upgraded, err := json.Marshal(dst); err == nil {
			if err := c.store.Put(ctx, key, upgraded); err != nil {
				c.log.Warn("cache upgrade not persisted", "key", key, "error", err)
			} else {
				c.log.Info("cache blob upgraded", "key", key, "version", currentVersion)
			}
		}
	}
	return true
}

func (c *Cache) discard(ctx context.Context, key string, cause error) {
	c.log.Warn("discarding cache blob", "key", key, "error", fmt.Errorf("%w: %v", model.ErrMalformedState, cause))
	if err := c.store.Delete(ctx, key); err != nil {
		c.log.Warn("cache delete failed", "key", key, "error", err)
	}
}

// limits are the retention bounds a pending write is encoded under. They
// tighten as the degradation ladder advances.
type limits struct {
	deckKeep   int
	historyCap int
}

type degradeStep struct {
	name  string
	apply func(ctx context.Context, lim *limits)
}

// save writes the blob produced by encode. On a capacity failure it walks
// the degradation ladder, retrying after each step. Failures are logged,
// never returned.
func (c *Cache) save(ctx context.Context, key string, encode func(limits) ([]byte, error)) {
	lim := limits{deckKeep: c.deckKeep, historyCap: c.historyCap}
	err := c.put(ctx, key, lim, encode)
	for i := 0; err != nil && errors.Is(err, store.ErrQuotaExceeded) && i < len(c.ladder); i++ {
		step := c.ladder[i]
		c.log.Warn("storage full, degrading cache", "key", key, "step", step.name)
		step.apply(ctx, &lim)
		err = c.put(ctx, key, lim, encode)
	}
	if err != nil {
		c.log.Error("cache write dropped", "key", key, "error", err)
	}
}

func (c *Cache) put(ctx context.Context, key string, lim limits, encode func(limits) ([]byte, error)) error {
	data, err := encode(lim)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, key, data)
}

func (c *Cache) trimDecks(ctx context.Context, lim *limits) {
	lim.deckKeep = min(lim.deckKeep, degradedDeckKeep)
	blob := c.loadDecks(ctx)
	if len(blob.Decks) <= lim.deckKeep {
		return
	}
	evictDecks(blob.Decks, lim.deckKeep)
	c.rewrite(ctx, KeyDecks, &blob)
}

func (c *Cache) dropPool(ctx context.Context, _ *limits) {
	if err := c.store.Delete(ctx, KeyPool); err != nil {
		c.log.Warn("cache delete failed", "key", KeyPool, "error", err)
	}
}

func (c *Cache) pruneHistory(ctx context.Context, lim *limits) {
	lim.historyCap = min(lim.historyCap, degradedHistoryCap)
	blob := c.loadHistory(ctx)
	if len(blob.Items) <= lim.historyCap {
		return
	}
	pruneHistory(blob.Items, lim.historyCap)
	c.rewrite(ctx, KeyHistory, &blob)
}

// rewrite stores a shrunken blob directly, bypassing the ladder.
func (c *Cache) rewrite(ctx context.Context, key string, blob versioned) {
	blob.stamp()
	data, err := json.Marshal(blob)
	if err == nil {
		err = c.store.Put(ctx, key, data)
	}
	if err != nil {
		c.log.Warn("cache rewrite failed", "key", key, "error", err)
	}
}
