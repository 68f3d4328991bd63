package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const acquirePollInterval = 50 * time.Millisecond

type redisProvider struct {
	client *redis.Client
	wait   time.Duration
	hold   time.Duration
}

// NewRedisProvider creates a Provider backed by a per-slot Redis key. wait
// bounds how long an acquisition may block; hold is the key TTL, after which
// Redis force-releases a lock whose holder crashed mid-operation.
func NewRedisProvider(client *redis.Client, wait, hold time.Duration) Provider {
	return &redisProvider{
		client: client,
		wait:   wait,
		hold:   hold,
	}
}

func (l *redisProvider) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:slot:%s", slotID.String())
	fence := uuid.NewString()

	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, fence, l.hold).Result()
		if err != nil {
			return fmt.Errorf("acquire slot lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(acquirePollInterval):
		}
	}

	defer func() {
		_ = l.release(ctx, key, fence)
	}()

	// The critical section must finish before Redis expires the key, or a
	// second caller could enter while this one is still writing.
	holdCtx, cancel := context.WithTimeout(ctx, l.hold)
	defer cancel()

	return fn(holdCtx)
}

// release deletes the key only if it still carries this holder's fence value,
// so an expired-and-reacquired lock is never released by the old holder.
var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisProvider) release(ctx context.Context, key, fence string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, fence).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}
