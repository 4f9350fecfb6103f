package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/cyberearn/reward-wallet/internal/repository"
)

const (
	cacheKey = "leaderboard:top"
	cacheTTL = 10 * time.Minute
)

// KV is the small key-value surface the cache needs; both the plain and the
// instrumented Redis client wrappers satisfy it.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Cache serves leaderboard snapshots out of Redis, recomputing from the user
// store when the cached copy is missing or stale.
type Cache struct {
	kv    KV
	users repository.UserRepository
	log   *slog.Logger
	now   func() time.Time
}

// NewCache constructs a leaderboard cache. kv may be nil, in which case every
// read recomputes.
func NewCache(kv KV, users repository.UserRepository, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}

	return &Cache{
		kv:    kv,
		users: users,
		log:   log,
		now:   time.Now,
	}
}

// Get returns the cached snapshot, refreshing on a miss.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	if c.kv != nil {
		data, err := c.kv.Get(ctx, cacheKey)
		if err == nil {
			var snapshot Snapshot
			if decodeErr := json.Unmarshal([]byte(data), &snapshot); decodeErr == nil {
				return &snapshot, nil
			}
			c.log.Warn("discarding undecodable leaderboard snapshot")
		} else if !errors.Is(err, redis.Nil) {
			c.log.Error("failed to read leaderboard cache", slog.Any("error", err))
		}
	}

	return c.Refresh(ctx)
}

// Refresh recomputes the snapshot from the user store and caches it.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	users, err := c.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users for leaderboard: %w", err)
	}

	snapshot := Compute(users, c.now().UTC())

	if c.kv != nil {
		payload, err := json.Marshal(snapshot)
		if err != nil {
			return nil, fmt.Errorf("encode leaderboard snapshot: %w", err)
		}

		if err := c.kv.Set(ctx, cacheKey, payload, cacheTTL); err != nil {
			c.log.Error("failed to cache leaderboard snapshot", slog.Any("error", err))
		}
	}

	return snapshot, nil
}
