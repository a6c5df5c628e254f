package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
)

// PendingAuthorization holds the state of an OAuth flow between redirect and
// callback. It lives only in this store; nothing is persisted until the code
// exchange succeeds.
type PendingAuthorization struct {
	State        string
	UserID       string
	Provider     domain.Provider
	CodeVerifier string
	CreatedAt    time.Time
}

// PendingAuthStore keeps pending authorizations keyed by the opaque state
// parameter. Entries expire automatically; an expired or unknown state means
// the flow was interrupted and the user must start over.
type PendingAuthStore interface {
	Put(ctx context.Context, pending *PendingAuthorization) error
	// Consume returns and removes the entry for state, so each state value is
	// usable exactly once. Missing entries yield ErrInterruptedFlow.
	Consume(ctx context.Context, state string) (*PendingAuthorization, error)
	Close() error
}

// MemoryPendingAuthStore implements PendingAuthStore using ttlcache.
type MemoryPendingAuthStore struct {
	cache *ttlcache.Cache[string, *PendingAuthorization]
	ttl   time.Duration
}

// NewMemoryPendingAuthStore creates an in-memory store with automatic cleanup.
func NewMemoryPendingAuthStore(ttl time.Duration) *MemoryPendingAuthStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *PendingAuthorization](ttl),
		ttlcache.WithDisableTouchOnHit[string, *PendingAuthorization](),
	)

	go cache.Start()

	return &MemoryPendingAuthStore{
		cache: cache,
		ttl:   ttl,
	}
}

// Put implements PendingAuthStore.Put.
func (s *MemoryPendingAuthStore) Put(_ context.Context, pending *PendingAuthorization) error {
	s.cache.Set(pending.State, pending, s.ttl)
	return nil
}

// Consume implements PendingAuthStore.Consume.
func (s *MemoryPendingAuthStore) Consume(_ context.Context, state string) (*PendingAuthorization, error) {
	item := s.cache.Get(state)
	if item == nil {
		return nil, errors.ErrInterruptedFlow
	}
	s.cache.Delete(state)

	return item.Value(), nil
}

// Close stops the cleanup goroutine.
func (s *MemoryPendingAuthStore) Close() error {
	s.cache.Stop()

	return nil
}
