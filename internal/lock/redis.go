package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKeyPattern = "wallet:lock:%s"

// RedisLocker implements Locker with SET NX leases so multiple instances can
// share one ownership space. A busy key is polled until the wait budget runs
// out.
type RedisLocker struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker creates a Redis-backed locker with default TTL and wait.
func NewRedisLocker(client *redis.Client, log *slog.Logger) *RedisLocker {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLocker{
		client: client,
		log:    log,
		ttl:    DefaultTTL,
		wait:   DefaultWait,
	}
}

// Acquire takes the lease for key, waiting up to the configured budget.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := fmt.Sprintf(lockKeyPattern, key)
	deadline := time.Now().Add(l.wait)

	for {
		acquired, err := l.client.SetNX(ctx, redisKey, 1, l.ttl).Result()
		if err != nil {
			l.log.Error("failed to acquire lock", "key", key, "error", err)
			return nil, err
		}

		if acquired {
			return func() {
				if err := l.client.Del(context.WithoutCancel(ctx), redisKey).Err(); err != nil {
					l.log.Error("failed to release lock", "key", key, "error", err)
				}
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acquireRetryDelay):
		}
	}
}
