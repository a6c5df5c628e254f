package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
)

func TestPendingAuthStoreConsumeOnce(t *testing.T) {
	store := NewMemoryPendingAuthStore(time.Minute)
	defer store.Close()

	ctx := context.Background()
	pending := &PendingAuthorization{
		State:        "state-1",
		UserID:       "user-1",
		Provider:     domain.ProviderOutlook,
		CodeVerifier: "verifier",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.Put(ctx, pending))

	got, err := store.Consume(ctx, "state-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, domain.ProviderOutlook, got.Provider)
	assert.Equal(t, "verifier", got.CodeVerifier)

	// Second consume of the same state fails: single use.
	_, err = store.Consume(ctx, "state-1")
	assert.ErrorIs(t, err, errors.ErrInterruptedFlow)
}

func TestPendingAuthStoreUnknownState(t *testing.T) {
	store := NewMemoryPendingAuthStore(time.Minute)
	defer store.Close()

	_, err := store.Consume(context.Background(), "never-issued")
	assert.ErrorIs(t, err, errors.ErrInterruptedFlow)
}

func TestPendingAuthStoreExpiry(t *testing.T) {
	store := NewMemoryPendingAuthStore(10 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, &PendingAuthorization{State: "state-2", UserID: "user-2"}))

	time.Sleep(30 * time.Millisecond)

	_, err := store.Consume(ctx, "state-2")
	assert.ErrorIs(t, err, errors.ErrInterruptedFlow)
}

func TestMemoryRefreshLocker(t *testing.T) {
	locker := NewMemoryRefreshLocker()
	defer locker.Close()

	ctx := context.Background()

	ok, err := locker.TryLock(ctx, "user-1:google", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locker.TryLock(ctx, "user-1:google", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Independent keys do not contend.
	ok, err = locker.TryLock(ctx, "user-1:outlook", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, locker.Unlock(ctx, "user-1:google"))
	ok, err = locker.TryLock(ctx, "user-1:google", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
