package leaderboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberearn/reward-wallet/internal/domain"
	"github.com/cyberearn/reward-wallet/internal/repository"
	pkgredis "github.com/cyberearn/reward-wallet/pkg/redis"
)

func TestCompute(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	users := []*domain.User{
		{ID: "1", Name: "low", Balance: decimal.NewFromInt(10)},
		{ID: "2", Name: "high", Balance: decimal.NewFromInt(300), ReferredUsers: []string{"1", "3"}},
		{ID: "3", Name: "tied-first", Balance: decimal.NewFromInt(50)},
		{ID: "4", Name: "tied-second", Balance: decimal.NewFromInt(50)},
	}

	snapshot := Compute(users, now)

	require.Len(t, snapshot.Entries, 4)
	assert.Equal(t, "2", snapshot.Entries[0].UserID)
	assert.Equal(t, 2, snapshot.Entries[0].ReferralCount)
	// Equal balances keep input order.
	assert.Equal(t, "3", snapshot.Entries[1].UserID)
	assert.Equal(t, "4", snapshot.Entries[2].UserID)
	assert.Equal(t, "1", snapshot.Entries[3].UserID)
	assert.Equal(t, now, snapshot.LastUpdated)
}

func TestComputeTruncates(t *testing.T) {
	users := make([]*domain.User, 0, Size+5)
	for i := 0; i < Size+5; i++ {
		users = append(users, &domain.User{
			ID:      fmt.Sprintf("u%d", i),
			Balance: decimal.NewFromInt(int64(i)),
		})
	}

	snapshot := Compute(users, time.Now())

	require.Len(t, snapshot.Entries, Size)
	assert.Equal(t, fmt.Sprintf("u%d", Size+4), snapshot.Entries[0].UserID)
}

func TestCacheGetRefreshesOnMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	kv := &pkgredis.Client{Client: rdb}

	store := repository.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.User{ID: "1", Name: "alice", Balance: decimal.NewFromInt(75)}))

	cache := NewCache(kv, store, nil)

	snapshot, err := cache.Get(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Entries, 1)
	assert.Equal(t, "alice", snapshot.Entries[0].Name)

	// The second read is served from Redis, not the store.
	require.NoError(t, store.Create(ctx, &domain.User{ID: "2", Name: "bob", Balance: decimal.NewFromInt(500)}))

	cached, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, cached.Entries, 1)

	refreshed, err := cache.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, refreshed.Entries, 2)
	assert.Equal(t, "bob", refreshed.Entries[0].Name)
}

func TestCacheWithoutKV(t *testing.T) {
	store := repository.NewMemoryStore()
	cache := NewCache(nil, store, nil)

	snapshot, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snapshot.Entries)
}
