package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type localLock struct {
	token     string
	expiresAt time.Time
}

// LocalLocker serializes payment flows inside a single process. It stands in
// for RedisLocker when no Redis address is configured.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]localLock
	now   func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]localLock), now: time.Now}
}

func (l *LocalLocker) AcquirePaymentLock(ctx context.Context, bookingID string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[bookingID]; ok && now.Before(held.expiresAt) {
		return "", nil
	}
	token := uuid.NewString()
	l.locks[bookingID] = localLock{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

func (l *LocalLocker) ReleasePaymentLock(ctx context.Context, bookingID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[bookingID]; ok && held.token == token {
		delete(l.locks, bookingID)
	}
	return nil
}
