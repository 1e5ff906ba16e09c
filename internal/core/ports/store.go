package ports

import (
	"context"
	"time"
)

// Store is the key-value contract the scheduler core is built on. The core
// assumes exactly these semantics and no stronger ones: every method is a
// single-key atomic operation, and no multi-key transaction primitive exists.
// Correctness of single-assignment therefore leans entirely on RPop (one
// concurrent caller observes any queued value) and SAdd (reports whether the
// member was newly added).
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error

	HGet(ctx context.Context, key, field string) (string, bool, error)
	// HMGet returns one value per requested field; missing fields come back
	// as empty strings.
	HMGet(ctx context.Context, key string, fields ...string) ([]string, error)
	// HSet writes all fields in one round trip. The batch is an efficiency
	// measure, not an atomicity guarantee across keys.
	HSet(ctx context.Context, key string, fields map[string]string) error

	LPush(ctx context.Context, key, value string) error
	RPop(ctx context.Context, key string) (string, bool, error)
	LRem(ctx context.Context, key string, count int64, value string) (int64, error)

	// ZAddNX registers a member only if absent, keeping existing scores.
	ZAddNX(ctx context.Context, key string, score float64, member string) error
	// ZRange returns members ordered by ascending score.
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// SAdd reports whether the member was newly added.
	SAdd(ctx context.Context, key, member string) (bool, error)
	SRem(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	// Keys lists keys matching a glob pattern. Observability only; never on
	// a request hot path.
	Keys(ctx context.Context, pattern string) ([]string, error)
}
