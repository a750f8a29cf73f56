package store

import (
	"context"
	"os"
)

// Stats holds storage statistics.
type Stats struct {
	DBPath      string     `json:"db_path"`
	DBSizeBytes int64      `json:"db_size_bytes,omitempty"`
	UsedBytes   int64      `json:"used_bytes"`
	QuotaBytes  int64      `json:"quota_bytes"`
	Keys        []KeyStats `json:"keys"`
}

// KeyStats holds per-key usage.
type KeyStats struct {
	Key       string `json:"key"`
	Bytes     int64  `json:"bytes"`
	Revision  string `json:"revision,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path, QuotaBytes: s.quota}

	// DB file size
	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, size, revision, updated_at
		FROM blobs ORDER BY key`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var k KeyStats
		if err := rows.Scan(&k.Key, &k.Bytes, &k.Revision, &k.UpdatedAt); err != nil {
			return st, err
		}
		st.UsedBytes += k.Bytes
		st.Keys = append(st.Keys, k)
	}

	return st, rows.Err()
}
