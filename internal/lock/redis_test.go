package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedis(client, zap.NewNop(), ttl)
	locker.retryInterval = 5 * time.Millisecond
	return locker, srv
}

func TestRedisTryLockContention(t *testing.T) {
	locker, srv := newTestRedis(t, time.Minute)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "connection:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = locker.TryLock(ctx, "connection:1")
	require.NoError(t, err)
	assert.False(t, ok, "held key cannot be taken twice")

	_, ok, err = locker.TryLock(ctx, "connection:2")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := srv.Get("tirta:lock:connection:1")
	require.NoError(t, err)
	assert.Equal(t, token, stored)
	assert.Equal(t, time.Minute, srv.TTL("tirta:lock:connection:1"))

	_, _, err = locker.TryLock(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestRedisReleaseChecksToken(t *testing.T) {
	locker, srv := newTestRedis(t, time.Minute)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "user:7")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locker.Release(ctx, "user:7", "someone-else"))
	assert.True(t, srv.Exists("tirta:lock:user:7"))

	require.NoError(t, locker.Release(ctx, "user:7", token))
	assert.False(t, srv.Exists("tirta:lock:user:7"))
}

func TestRedisAcquireWaitsForRelease(t *testing.T) {
	locker, _ := newTestRedis(t, time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "connection:1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		next, err := locker.Acquire(ctx, "connection:1")
		if err == nil {
			next()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second holder never acquired the released key")
	}
}

func TestRedisAcquireHonoursContext(t *testing.T) {
	locker, _ := newTestRedis(t, time.Minute)

	release, err := locker.Acquire(context.Background(), "user:9")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "user:9")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRedisExpiredHolderCannotReleaseNewHolder(t *testing.T) {
	locker, srv := newTestRedis(t, time.Second)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "connection:3")
	require.NoError(t, err)

	srv.FastForward(2 * time.Second)
	token, ok, err := locker.TryLock(ctx, "connection:3")
	require.NoError(t, err)
	require.True(t, ok, "expired key is free again")

	stale()
	stored, err := srv.Get("tirta:lock:connection:3")
	require.NoError(t, err)
	assert.Equal(t, token, stored)
}
