package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// RefreshLocker serializes token refreshes per credential so concurrent
// availability requests do not race against the provider's token endpoint.
type RefreshLocker interface {
	// TryLock returns true when the caller acquired the lock for key. The
	// lock expires after ttl even if never released.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// MemoryRefreshLocker implements RefreshLocker for single-process deployments.
type MemoryRefreshLocker struct {
	cache *ttlcache.Cache[string, struct{}]
}

// NewMemoryRefreshLocker creates an in-memory locker with automatic expiry.
func NewMemoryRefreshLocker() *MemoryRefreshLocker {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)

	go cache.Start()

	return &MemoryRefreshLocker{cache: cache}
}

// TryLock implements RefreshLocker.TryLock.
func (l *MemoryRefreshLocker) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	_, existed := l.cache.GetOrSet(key, struct{}{}, ttlcache.WithTTL[string, struct{}](ttl))

	return !existed, nil
}

// Unlock implements RefreshLocker.Unlock.
func (l *MemoryRefreshLocker) Unlock(_ context.Context, key string) error {
	l.cache.Delete(key)

	return nil
}

// Close stops the cleanup goroutine.
func (l *MemoryRefreshLocker) Close() error {
	l.cache.Stop()

	return nil
}
