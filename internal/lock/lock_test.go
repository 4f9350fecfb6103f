package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerSerializesHolders(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	const workers = 16
	counter := 0

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			release, err := locker.Acquire(ctx, "user:1")
			require.NoError(t, err)
			defer release()

			current := counter
			time.Sleep(time.Millisecond)
			counter = current + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestMemoryLockerIndependentKeys(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, "user:1")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := locker.Acquire(ctx, "user:2")
		assert.NoError(t, err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked behind a held lock")
	}
}

func TestMemoryLockerContextCancel(t *testing.T) {
	locker := NewMemoryLocker()

	release, err := locker.Acquire(context.Background(), "user:1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(ctx, "user:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryLockerReleaseIsIdempotent(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "user:1")
	require.NoError(t, err)
	release()
	release()

	again, err := locker.Acquire(ctx, "user:1")
	require.NoError(t, err)
	again()
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLocker(client, nil)
	locker.wait = 50 * time.Millisecond
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "user:1")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "user:1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	release()

	release2, err := locker.Acquire(ctx, "user:1")
	require.NoError(t, err)
	release2()
}

func TestRedisLockerLeaseExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLocker(client, nil)
	locker.wait = 50 * time.Millisecond
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "user:1")
	require.NoError(t, err)

	// A crashed holder never releases; the TTL frees the key.
	mr.FastForward(DefaultTTL + time.Second)

	release, err := locker.Acquire(ctx, "user:1")
	require.NoError(t, err)
	release()
}
