package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSerialisesSameKey(t *testing.T) {
	locker := NewLocal()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  int32
		maxSeen int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "connection:1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
	assert.Equal(t, 0, locker.held())
}

func TestLocalDifferentKeysDoNotBlock(t *testing.T) {
	locker := NewLocal()
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, "connection:1")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := locker.Acquire(ctx, "connection:2")
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("second key blocked behind first")
	}
}

func TestLocalAcquireHonoursContext(t *testing.T) {
	locker := NewLocal()
	release, err := locker.Acquire(context.Background(), "user:9")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "user:9")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	release()
	release() // second call is a no-op
	assert.Equal(t, 0, locker.held())

	_, err = locker.Acquire(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestRedisWithoutClient(t *testing.T) {
	assert.Nil(t, NewRedis(nil, nil, 0))

	var locker *Redis
	_, ok, err := locker.TryLock(context.Background(), "k")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.NoError(t, locker.Release(context.Background(), "k", "token"))
}
