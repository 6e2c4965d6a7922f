package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Minute

// Lock coordinates exclusive cron runs across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
}

// RedisLock implements Lock with SET NX plus a TTL. Release is a compare-and-delete
// so an expired owner never frees a lock another replica has since taken.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	if _, err := l.client.DeleteIfValue(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	l.owner = ""
	return nil
}
