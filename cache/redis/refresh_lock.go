package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshLocker implements the refresh lock on Redis so multiple instances
// sharing a credential store also share the lock.
type RefreshLocker struct {
	client *redis.Client
	prefix string // Optional prefix for keys
}

// NewRefreshLocker creates a new [RefreshLocker] instance.
func NewRefreshLocker(client *redis.Client, prefix string) *RefreshLocker {
	return &RefreshLocker{
		client: client,
		prefix: prefix,
	}
}

func (l *RefreshLocker) redisKey(key string) string {
	return fmt.Sprintf("%s:refresh-lock:%s", l.prefix, key)
}

// TryLock acquires the lock with SET NX; the TTL bounds how long a crashed
// holder can block other refreshers.
func (l *RefreshLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.redisKey(key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire refresh lock: %w", err)
	}

	return ok, nil
}

// Unlock releases the lock.
func (l *RefreshLocker) Unlock(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release refresh lock: %w", err)
	}

	return nil
}
