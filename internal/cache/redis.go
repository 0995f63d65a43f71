package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/staybooking/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still carries the caller's
// token, so an expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(cfg config.RedisConfig) *RedisLocker {
	return &RedisLocker{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
	}
}

// AcquirePaymentLock returns a release token when the lock was taken and an
// empty token when another flow already holds it.
func (c *RedisLocker) AcquirePaymentLock(ctx context.Context, bookingID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, paymentLockKey(bookingID), token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (c *RedisLocker) ReleasePaymentLock(ctx context.Context, bookingID, token string) error {
	return releaseScript.Run(ctx, c.client, []string{paymentLockKey(bookingID)}, token).Err()
}

func (c *RedisLocker) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisLocker) Close() error {
	return c.client.Close()
}

func paymentLockKey(bookingID string) string {
	return fmt.Sprintf("lock:booking:%s:payment", bookingID)
}
