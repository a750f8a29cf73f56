package store

import (
	"context"
	"fmt"
)

// Blob is one exported key/value pair.
type Blob struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ExportAll returns every stored blob in key order.
func ExportAll(ctx context.Context, s Store) ([]Blob, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}

	blobs := make([]Blob, 0, len(keys))
	for _, k := range keys {
		v, err := s.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", k, err)
		}
		blobs = append(blobs, Blob{Key: k, Value: string(v)})
	}
	return blobs, nil
}

// Import writes blobs into s, replacing existing keys. Returns the number
// written before any error.
func Import(ctx context.Context, s Store, blobs []Blob) (int, error) {
	imported := 0
	for _, b := range blobs {
		if b.Key == "" {
			continue
		}
		if err := s.Put(ctx, b.Key, []byte(b.Value)); err != nil {
			return imported, fmt.Errorf("import %s: %w", b.Key, err)
		}
		imported++
	}
	return imported, nil
}
