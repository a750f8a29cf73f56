// Package store provides the key/value blob medium behind the review caches,
// with a SQLite implementation and an in-memory one.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/memos-daily-review/internal/model"
)

// DefaultQuotaBytes mirrors the browser storage budget the caches were
// sized for.
const DefaultQuotaBytes = 5 << 20

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("store: key not found")

	// ErrQuotaExceeded is returned by Put when the write would exceed the
	// medium's capacity.
	ErrQuotaExceeded = fmt.Errorf("store: %w", model.ErrStorageQuota)
)

// Store defines the blob storage interface.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists stored keys in lexical order.
	Keys(ctx context.Context) ([]string, error)

	// Stats reports usage.
	Stats(ctx context.Context) (*Stats, error)

	// Close closes the store.
	Close() error
}
