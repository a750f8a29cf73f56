package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	quota   int64
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	updatedAt time.Time
}

// NewMemoryStore returns an empty store. A quota <= 0 means DefaultQuotaBytes.
func NewMemoryStore(quota int64) *MemoryStore {
	if quota <= 0 {
		quota = DefaultQuotaBytes
	}
	return &MemoryStore{quota: quota, entries: map[string]memoryEntry{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var used int64
	for k, e := range s.entries {
		if k != key {
			used += int64(len(e.value))
		}
	}
	if used+int64(len(value)) > s.quota {
		return fmt.Errorf("put %s (%d bytes, %d used of %d): %w", key, len(value), used, s.quota, ErrQuotaExceeded)
	}

	s.entries[key] = memoryEntry{value: append([]byte(nil), value...), updatedAt: time.Now().UTC()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Stats{DBPath: ":memory:", QuotaBytes: s.quota}
	for k, e := range s.entries {
		st.UsedBytes += int64(len(e.value))
		st.Keys = append(st.Keys, KeyStats{Key: k, Bytes: int64(len(e.value)), UpdatedAt: e.updatedAt.Format(time.RFC3339)})
	}
	sort.Slice(st.Keys, func(i, j int) bool { return st.Keys[i].Key < st.Keys[j].Key })
	return st, nil
}

func (s *MemoryStore) Close() error { return nil }
