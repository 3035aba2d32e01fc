package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory Backend. Buckets are created on first write or delete.
//
// It does not track write times: every listed object reports the time of the listing.
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]map[string][]byte)}
}

var _ Backend = (*Memory)(nil)

// initBucket must be called with mu held for writing.
func (m *Memory) initBucket(bucket string) map[string][]byte {
	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string][]byte)
		m.buckets[bucket] = b
	}
	return b
}

// Put reads the whole payload and stores it, replacing any previous content.
func (m *Memory) Put(_ context.Context, bucket, key string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.initBucket(bucket)[key] = data
	return nil
}

// Get returns a copy of the stored content.
func (m *Memory) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.buckets[bucket]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := b[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Delete removes the key, creating the bucket if needed. A missing key is not an error.
func (m *Memory) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.initBucket(bucket), key)
	return nil
}

// List returns the matching keys in lexical order.
func (m *Memory) List(_ context.Context, bucket, prefix string) ([]ObjectSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	out := make([]ObjectSummary, 0)
	for key := range m.buckets[bucket] {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectSummary{Key: key, LastModified: now})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// HasBucket reports whether bucket has been created by a write or a delete.
func (m *Memory) HasBucket(bucket string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.buckets[bucket]
	return ok
}

// Len returns the number of objects stored in bucket.
func (m *Memory) Len(bucket string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buckets[bucket])
}
