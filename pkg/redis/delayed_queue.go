package redis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

type zsetStore interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) error
	ZRangeByScore(ctx context.Context, key string, min, max float64, count int64) ([]string, error)
	ZRem(ctx context.Context, key string, members ...any) (int64, error)
}

// DelayedQueue schedules string members for a future time on a sorted set
// scored by unix seconds.
type DelayedQueue struct {
	store zsetStore
	key   string
}

// NewDelayedQueue returns a queue stored under key.
func NewDelayedQueue(store zsetStore, key string) (*DelayedQueue, error) {
	if store == nil {
		return nil, errors.New("redis client required for delayed queue")
	}
	if key == "" {
		return nil, errors.New("queue key is required")
	}
	return &DelayedQueue{store: store, key: key}, nil
}

// Schedule makes member due at the given time. Rescheduling a member moves it.
func (q *DelayedQueue) Schedule(ctx context.Context, member string, at time.Time) error {
	if err := q.store.ZAdd(ctx, q.key, redis.Z{Score: float64(at.Unix()), Member: member}); err != nil {
		return fmt.Errorf("schedule %s: %w", member, err)
	}
	return nil
}

// Due returns up to limit members whose time is at or before now.
func (q *DelayedQueue) Due(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	members, err := q.store.ZRangeByScore(ctx, q.key, math.Inf(-1), float64(now.Unix()), limit)
	if err != nil {
		return nil, fmt.Errorf("read due members: %w", err)
	}
	return members, nil
}

// Ack removes member. It reports false when another consumer already took it.
func (q *DelayedQueue) Ack(ctx context.Context, member string) (bool, error) {
	removed, err := q.store.ZRem(ctx, q.key, member)
	if err != nil {
		return false, fmt.Errorf("ack %s: %w", member, err)
	}
	return removed > 0, nil
}
