package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_AcquireRelease(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	token, err := locker.AcquirePaymentLock(ctx, "b-1", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	second, err := locker.AcquirePaymentLock(ctx, "b-1", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, second)

	other, err := locker.AcquirePaymentLock(ctx, "b-2", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, other)

	require.NoError(t, locker.ReleasePaymentLock(ctx, "b-1", "wrong-token"))
	stillHeld, err := locker.AcquirePaymentLock(ctx, "b-1", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, stillHeld)

	require.NoError(t, locker.ReleasePaymentLock(ctx, "b-1", token))
	again, err := locker.AcquirePaymentLock(ctx, "b-1", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, again)
}

func TestLocalLocker_Expiry(t *testing.T) {
	locker := NewLocalLocker()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := locker.AcquirePaymentLock(ctx, "b-1", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	token, err := locker.AcquirePaymentLock(ctx, "b-1", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestPaymentLockKey(t *testing.T) {
	assert.Equal(t, "lock:booking:b-1:payment", paymentLockKey("b-1"))
}
