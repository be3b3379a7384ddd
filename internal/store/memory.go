package store

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
)

// MemoryBackend implements Backend in process memory for development and
// tests. Operations are safe for concurrent use.
type MemoryBackend struct {
	mu     sync.RWMutex
	hashes map[string]map[string]string
	zsets  map[string]map[string]float64
	sets   map[string]map[string]struct{}
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string]map[string]float64),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (b *MemoryBackend) HSet(ctx context.Context, key string, fields map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.hashes[key]
	if !ok {
		h = make(map[string]string)
		b.hashes[key] = h
	}
	for field, value := range fields {
		h[field] = fmt.Sprintf("%v", value)
	}
	return nil
}

func (b *MemoryBackend) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]string, len(b.hashes[key]))
	for field, value := range b.hashes[key] {
		out[field] = value
	}
	return out, nil
}

func (b *MemoryBackend) Del(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		delete(b.hashes, key)
		delete(b.zsets, key)
		delete(b.sets, key)
	}
	return nil
}

func (b *MemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.hashes[key]; ok {
		return true, nil
	}
	if _, ok := b.zsets[key]; ok {
		return true, nil
	}
	_, ok := b.sets[key]
	return ok, nil
}

func (b *MemoryBackend) ZAdd(ctx context.Context, key string, score float64, member string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	z, ok := b.zsets[key]
	if !ok {
		z = make(map[string]float64)
		b.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (b *MemoryBackend) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sliceRange(b.sortedMembers(key, false), start, stop), nil
}

func (b *MemoryBackend) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sliceRange(b.sortedMembers(key, true), start, stop), nil
}

func (b *MemoryBackend) ZRem(ctx context.Context, key string, members ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, m := range members {
		delete(b.zsets[key], m)
	}
	return nil
}

func (b *MemoryBackend) ZCard(ctx context.Context, key string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return int64(len(b.zsets[key])), nil
}

func (b *MemoryBackend) SAdd(ctx context.Context, key string, members ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sets[key]
	if !ok {
		s = make(map[string]struct{})
		b.sets[key] = s
	}
	for _, m := range members {
		s[m] = struct{}{}
	}
	return nil
}

func (b *MemoryBackend) SMembers(ctx context.Context, key string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	members := make([]string, 0, len(b.sets[key]))
	for m := range b.sets[key] {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (b *MemoryBackend) SRem(ctx context.Context, key string, members ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, m := range members {
		delete(b.sets[key], m)
	}
	if len(b.sets[key]) == 0 {
		delete(b.sets, key)
	}
	return nil
}

func (b *MemoryBackend) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var keys []string
	match := func(key string) {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	for key := range b.hashes {
		match(key)
	}
	for key := range b.zsets {
		match(key)
	}
	for key := range b.sets {
		match(key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

// sortedMembers returns zset members ordered by score, ties broken by
// member string to keep ranges deterministic. Caller must hold the lock.
func (b *MemoryBackend) sortedMembers(key string, descending bool) []string {
	z := b.zsets[key]
	members := make([]string, 0, len(z))
	for m := range z {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := z[members[i]], z[members[j]]
		if si != sj {
			if descending {
				return si > sj
			}
			return si < sj
		}
		if descending {
			return members[i] > members[j]
		}
		return members[i] < members[j]
	})
	return members
}

// sliceRange applies Redis range semantics, including negative indexes.
func sliceRange(members []string, start, stop int64) []string {
	n := int64(len(members))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil
	}
	return members[start : stop+1]
}

var _ Backend = (*MemoryBackend)(nil)
