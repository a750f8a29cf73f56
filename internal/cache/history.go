package cache

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rcliao/memos-daily-review/internal/model"
)

type historyBlob struct {
	header
	Items model.History `json:"items"`
}

func (b *historyBlob) check() error { return nil }

func (c *Cache) loadHistory(ctx context.Context) historyBlob {
	var blob historyBlob
	if !c.load(ctx, KeyHistory, &blob) {
		blob = historyBlob{}
	}
	if blob.Items == nil {
		blob.Items = model.History{}
	}
	return blob
}

func (c *Cache) writeHistory(ctx context.Context, h model.History) {
	blob := historyBlob{Items: h}
	blob.stamp()
	c.save(ctx, KeyHistory, func(lim limits) ([]byte, error) {
		pruneHistory(blob.Items, lim.historyCap)
		return json.Marshal(&blob)
	})
}

// GetHistory returns a snapshot of the review history. It is never nil.
func (c *Cache) GetHistory(ctx context.Context) model.History {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadHistory(ctx).Items
}

// PutHistory replaces the review history, pruning it to the cap.
func (c *Cache) PutHistory(ctx context.Context, h model.History) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeHistory(ctx, h.Clone())
}

// UpdateHistory applies fn to the stored history and writes the result
// back as one atomic step. It returns the updated snapshot.
func (c *Cache) UpdateHistory(ctx context.Context, fn func(model.History)) model.History {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.loadHistory(ctx).Items
	fn(h)
	c.writeHistory(ctx, h)
	return h.Clone()
}

// pruneHistory drops entries with the oldest last-shown day until at most
// limit remain. Entries without a day go first; ties break by memo id.
func pruneHistory(h model.History, limit int) {
	if len(h) <= limit {
		return
	}
	ids := make([]string, 0, len(h))
	for id := range h {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := h[ids[i]].LastShownDay, h[ids[j]].LastShownDay
		if a != b {
			return a < b
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids[:len(ids)-limit] {
		delete(h, id)
	}
}
