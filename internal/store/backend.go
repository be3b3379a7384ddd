// Package store persists chat records and serves the lookup structures the
// retrieval pipeline reads: per-category recency rankings, an inverted
// keyword index, and an optional vector index.
package store

import (
	"context"
	"errors"
)

// ErrNotFound indicates a missing record.
var ErrNotFound = errors.New("record not found")

// Backend is the key-value surface the chat store runs on. RedisBackend is
// the production implementation; MemoryBackend serves tests and local
// development.
type Backend interface {
	HSet(ctx context.Context, key string, fields map[string]interface{}) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRem(ctx context.Context, key string, members ...string) error
	ZCard(ctx context.Context, key string) (int64, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SRem(ctx context.Context, key string, members ...string) error

	ScanKeys(ctx context.Context, pattern string) ([]string, error)

	Close() error
}
