package redis_utils_test

import (
	"context"
	"os"
	"testing"
	"time"

	redis_utils "autoinvest/src/utils/redis"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) *redis_utils.RedisLocker {
	addr := os.Getenv("AUTOINVEST_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	locker := redis_utils.NewRedisLockerWithClient(client, 5*time.Second, nil)
	t.Cleanup(func() { _ = locker.Close() })
	return locker
}

func TestRedisLocker(t *testing.T) {
	locker := newLocker(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	unlock, ok, err := locker.TryLock(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "a held key must not be acquired twice")

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	unlock, err = locker.Lock(ctx, key)
	require.NoError(t, err)
	unlock()
}
