package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
	// ErrLockUnavailable wraps failures talking to Redis itself
	ErrLockUnavailable = errors.New("slot lock unavailable")
)

// SlotLocker serializes bookings that target the same professional slot.
// The database unique index stays the authority; the lock only keeps
// concurrent requests from racing into the transaction.
type SlotLocker interface {
	WithSlotLock(ctx context.Context, professionalID int64, scheduledAt time.Time, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotLocker creates a locker that uses a per slot Redis key
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) SlotLocker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
	}
}

// SlotKey names the lock for one professional start time
func SlotKey(professionalID int64, scheduledAt time.Time) string {
	return fmt.Sprintf("lock:slot:%d:%s", professionalID, scheduledAt.Format("200601021504"))
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, professionalID int64, scheduledAt time.Time, fn func(ctx context.Context) error) error {
	key := SlotKey(professionalID, scheduledAt)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}

type noopLocker struct{}

// NewNoopLocker runs fn directly; used when no Redis is configured
func NewNoopLocker() SlotLocker {
	return noopLocker{}
}

func (noopLocker) WithSlotLock(ctx context.Context, _ int64, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
