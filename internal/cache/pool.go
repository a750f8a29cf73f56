package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rcliao/memos-daily-review/internal/model"
	"github.com/rcliao/memos-daily-review/internal/normalize"
)

type poolBlob struct {
	header
	model.Pool
}

func (b *poolBlob) check() error {
	if !model.ValidRanges[b.TimeRange] {
		return fmt.Errorf("pool: invalid time range %q", b.TimeRange)
	}
	return nil
}

// GetPool returns the cached pool for tr if it is present and younger than
// the pool TTL.
func (c *Cache) GetPool(ctx context.Context, tr model.TimeRange) (model.Pool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var blob poolBlob
	if !c.load(ctx, KeyPool, &blob) {
		return model.Pool{}, false
	}
	if blob.TimeRange != tr {
		return model.Pool{}, false
	}
	if age := c.now().Sub(blob.FetchedAt); age >= c.poolTTL || age < 0 {
		c.log.Debug("pool expired", "time_range", tr, "age", age)
		return model.Pool{}, false
	}
	pool := blob.Pool
	pool.Memos = append([]model.Memo(nil), blob.Memos...)
	return pool, true
}

// PutPool replaces the single cached pool. Any pool of another range is
// dropped.
func (c *Cache) PutPool(ctx context.Context, tr model.TimeRange, memos []model.Memo) model.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()

	pool := model.Pool{TimeRange: tr, Memos: append([]model.Memo(nil), memos...), FetchedAt: c.now().UTC()}
	c.writePool(ctx, pool)
	return pool
}

// InvalidatePool forgets the cached pool.
func (c *Cache) InvalidatePool(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropPool(ctx, nil)
}

func (c *Cache) writePool(ctx context.Context, pool model.Pool) {
	blob := poolBlob{Pool: pool}
	blob.stamp()
	c.save(ctx, KeyPool, func(limits) ([]byte, error) {
		return json.Marshal(&blob)
	})
}

// ReplaceMemo swaps the memo with m's id for m in the cached pool and in
// every cached deck. An edit that leaves m ineligible removes it instead.
func (c *Cache) ReplaceMemo(ctx context.Context, m model.Memo) {
	if !normalize.Eligible(m) {
		c.RemoveMemo(ctx, m.ID)
		return
	}
	c.rewriteMemos(ctx, m.ID, func(memos []model.Memo, i int) []model.Memo {
		out := append([]model.Memo(nil), memos...)
		out[i] = m
		return out
	})
}

// RemoveMemo drops id from the cached pool and from every cached deck.
func (c *Cache) RemoveMemo(ctx context.Context, id string) {
	c.rewriteMemos(ctx, id, func(memos []model.Memo, i int) []model.Memo {
		out := make([]model.Memo, 0, len(memos)-1)
		out = append(out, memos[:i]...)
		return append(out, memos[i+1:]...)
	})
}

func (c *Cache) rewriteMemos(ctx context.Context, id string, edit func([]model.Memo, int) []model.Memo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pool poolBlob
	if c.load(ctx, KeyPool, &pool) {
		if i := indexOf(pool.Memos, id); i >= 0 {
			pool.Memos = edit(pool.Memos, i)
			c.writePool(ctx, pool.Pool)
		}
	}

	decks := c.loadDecks(ctx)
	changed := false
	for key, d := range decks.Decks {
		if i := indexOf(d.Memos, id); i >= 0 {
			d.Memos = edit(d.Memos, i)
			decks.Decks[key] = d
			changed = true
		}
	}
	if changed {
		c.writeDecks(ctx, decks)
	}
}

func indexOf(memos []model.Memo, id string) int {
	for i, m := range memos {
		if m.ID == id {
			return i
		}
	}
	return -1
}
