package cron

import (
	"context"
	"time"

	"github.com/angelmondragon/ordo-backend/pkg/redis"
)

const defaultLockTTL = 25 * time.Hour

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// NewRedisLock returns the worker-wide lock so only one cron-worker replica runs a cycle.
func NewRedisLock(client *redis.Client, ttl time.Duration) (Lock, error) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return redis.NewMutex(client, client.LockKey("cron", "worker"), ttl)
}
