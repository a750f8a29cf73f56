package cache

import (
	"context"
	"encoding/json"

	"github.com/rcliao/memos-daily-review/internal/model"
)

// settingsBlob carries the settings and the batch cursor for them. The
// cursor records the latest batch shown on BatchDay; any other day is at
// batch 0.
type settingsBlob struct {
	header
	model.Settings
	BatchDay string `json:"batch_day,omitempty"`
	Batch    int    `json:"batch,omitempty"`
}

func (b *settingsBlob) check() error { return b.Settings.Validate() }

func (c *Cache) loadSettings(ctx context.Context) settingsBlob {
	var blob settingsBlob
	if !c.load(ctx, KeySettings, &blob) {
		return settingsBlob{Settings: model.DefaultSettings()}
	}
	return blob
}

func (c *Cache) writeSettings(ctx context.Context, blob settingsBlob) {
	blob.stamp()
	c.save(ctx, KeySettings, func(limits) ([]byte, error) {
		return json.Marshal(&blob)
	})
}

// GetSettings returns the persisted settings, or the defaults.
func (c *Cache) GetSettings(ctx context.Context) model.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadSettings(ctx).Settings
}

// PutSettings persists s after validating it. The batch cursor restarts
// at 0.
func (c *Cache) PutSettings(ctx context.Context, s model.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeSettings(ctx, settingsBlob{Settings: s})
	return nil
}

// Batch returns the current batch for day under the persisted settings.
func (c *Cache) Batch(ctx context.Context, day string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	blob := c.loadSettings(ctx)
	if blob.BatchDay != day {
		return 0
	}
	return blob.Batch
}

// SetBatch moves the cursor for day forward to batch. A lower batch than
// the recorded one for the same day is ignored.
func (c *Cache) SetBatch(ctx context.Context, day string, batch int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	blob := c.loadSettings(ctx)
	if blob.BatchDay == day && blob.Batch >= batch {
		return
	}
	blob.BatchDay = day
	blob.Batch = batch
	c.writeSettings(ctx, blob)
}
