package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rcliao/memos-daily-review/internal/model"
)

type decksBlob struct {
	header
	Decks   map[string]model.Deck `json:"decks"`
	LastKey string                `json:"last_key,omitempty"`
}

func (b *decksBlob) check() error {
	for key, d := range b.Decks {
		if d.Key != key {
			return fmt.Errorf("decks: entry %q holds deck %q", key, d.Key)
		}
	}
	return nil
}

func (c *Cache) loadDecks(ctx context.Context) decksBlob {
	var blob decksBlob
	if !c.load(ctx, KeyDecks, &blob) {
		blob = decksBlob{}
	}
	if blob.Decks == nil {
		blob.Decks = map[string]model.Deck{}
	}
	if _, ok := blob.Decks[blob.LastKey]; !ok {
		blob.LastKey = ""
	}
	return blob
}

func (c *Cache) writeDecks(ctx context.Context, blob decksBlob) {
	blob.stamp()
	c.save(ctx, KeyDecks, func(lim limits) ([]byte, error) {
		evictDecks(blob.Decks, lim.deckKeep)
		if _, ok := blob.Decks[blob.LastKey]; !ok {
			blob.LastKey = ""
		}
		return json.Marshal(&blob)
	})
}

// GetDeck returns the cached deck stored under key.
func (c *Cache) GetDeck(ctx context.Context, key string) (model.Deck, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.loadDecks(ctx).Decks[key]
	return d, ok
}

// PutDeck stores d, marks it as the most recent deck and evicts the oldest
// decks beyond the retention bound.
func (c *Cache) PutDeck(ctx context.Context, d model.Deck) {
	c.mu.Lock()
	defer c.mu.Unlock()

	blob := c.loadDecks(ctx)
	blob.Decks[d.Key] = d
	blob.LastKey = d.Key
	c.writeDecks(ctx, blob)
}

// InvalidateDeck forgets the deck stored under key.
func (c *Cache) InvalidateDeck(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	blob := c.loadDecks(ctx)
	if _, ok := blob.Decks[key]; !ok {
		return
	}
	delete(blob.Decks, key)
	c.writeDecks(ctx, blob)
}

// LastKey returns the key of the most recently stored deck, or "".
func (c *Cache) LastKey(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadDecks(ctx).LastKey
}

// evictDecks removes the oldest decks by creation time until at most keep
// remain.
func evictDecks(decks map[string]model.Deck, keep int) {
	if len(decks) <= keep {
		return
	}
	keys := make([]string, 0, len(decks))
	for k := range decks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := decks[keys[i]], decks[keys[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys[:len(keys)-keep] {
		delete(decks, k)
	}
}
