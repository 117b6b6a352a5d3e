package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned by TryLock when another owner holds the key.
var ErrLockHeld = errors.New("lock held by another owner")

// lockStore is the subset of Client used by Mutex.
type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// Mutex is a SETNX + TTL lock owned through a random token. Release only
// deletes the key while the token still matches, so an expired lock that was
// re-acquired elsewhere is left alone.
type Mutex struct {
	store lockStore
	key   string
	ttl   time.Duration
	owner string
}

// NewMutex builds a lock for key. A non-positive ttl is rejected.
func NewMutex(store lockStore, key string, ttl time.Duration) (*Mutex, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	return &Mutex{store: store, key: key, ttl: ttl}, nil
}

// Key returns the locked key.
func (m *Mutex) Key() string { return m.key }

// Acquire tries to own the lock for the configured TTL.
func (m *Mutex) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := m.store.SetNX(ctx, m.key, owner, m.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		m.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if the owner value still matches.
func (m *Mutex) Release(ctx context.Context) error {
	if m.owner == "" {
		return nil
	}
	value, err := m.store.Get(ctx, m.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			m.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != m.owner {
		m.owner = ""
		return nil
	}
	if err := m.store.Del(ctx, m.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	m.owner = ""
	return nil
}

// TryLock acquires key or returns ErrLockHeld. The returned func releases it.
func TryLock(ctx context.Context, store lockStore, key string, ttl time.Duration) (func(context.Context) error, error) {
	m, err := NewMutex(store, key, ttl)
	if err != nil {
		return nil, err
	}
	ok, err := m.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return m.Release, nil
}
