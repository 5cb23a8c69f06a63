package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketAcquireUnderCapacity(t *testing.T) {
	t.Parallel()

	b := NewBucket("test", 3, time.Hour, false)
	defer b.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Acquire(context.Background()))
	}
	assert.Equal(t, 0, b.Remaining())
}

func TestBucketBlocksAtCapacity(t *testing.T) {
	t.Parallel()

	b := NewBucket("test", 1, time.Hour, false)
	defer b.Close()

	require.NoError(t, b.Acquire(context.Background()))

	acquired := make(chan error, 1)
	go func() {
		acquired <- b.Acquire(context.Background())
	}()

	select {
	case err := <-acquired:
		t.Fatalf("acquire should have blocked, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	b.Reset()

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter not released by reset")
	}
	assert.Equal(t, 0, b.Remaining())
}

func TestBucketAcquireContextCancelled(t *testing.T) {
	t.Parallel()

	b := NewBucket("test", 1, time.Hour, false)
	defer b.Close()

	require.NoError(t, b.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Acquire(ctx), context.DeadlineExceeded)
}

func TestBucketCloseReleasesWaiters(t *testing.T) {
	t.Parallel()

	b := NewBucket("test", 1, time.Hour, false)
	require.NoError(t, b.Acquire(context.Background()))

	const waiters = 4
	errs := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			errs <- b.Acquire(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)

	b.Close()

	for i := 0; i < waiters; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrClosed)
		case <-time.After(time.Second):
			t.Fatal("waiter not released by close")
		}
	}

	assert.ErrorIs(t, b.Acquire(context.Background()), ErrClosed)
}

func TestBucketSelfRenewReleasesWaiters(t *testing.T) {
	t.Parallel()

	b := NewBucket("test", 2, 50*time.Millisecond, true)
	defer b.Close()

	require.NoError(t, b.Acquire(context.Background()))
	require.NoError(t, b.Acquire(context.Background()))

	// At capacity; the window timer must release this on its own.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.Acquire(ctx))
}

func TestBucketSelfRenewRearms(t *testing.T) {
	t.Parallel()

	b := NewBucket("test", 1, 30*time.Millisecond, true)
	defer b.Close()

	// Each acquire after the first needs its own window reset, so this
	// only completes if the timer keeps re-arming.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Acquire(ctx))
	}
}

func TestBucketNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	const capacity = 5
	b := NewBucket("test", capacity, time.Hour, false)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var acquired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < capacity*4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Acquire(ctx) == nil {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(capacity), acquired.Load())
}

func TestRegistryRoutesByName(t *testing.T) {
	t.Parallel()

	chat := NewBucket(BucketChat, 1, time.Hour, false)
	r := NewRegistry(chat)
	defer r.Close()

	require.NoError(t, r.Acquire(context.Background(), BucketChat))
	assert.Equal(t, 0, chat.Remaining())

	// Unknown names pass through unthrottled.
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Acquire(context.Background(), "nonexistent"))
	}
}

func TestRegistryReset(t *testing.T) {
	t.Parallel()

	chat := NewBucket(BucketChat, 1, time.Hour, false)
	r := NewRegistry(chat)
	defer r.Close()

	require.NoError(t, r.Acquire(context.Background(), BucketChat))
	r.Reset(BucketChat)
	assert.Equal(t, 1, chat.Remaining())
}

func TestRegistryCloseReleasesAll(t *testing.T) {
	t.Parallel()

	chat := NewBucket(BucketChat, 1, time.Hour, false)
	join := NewBucket(BucketJoin, 1, time.Hour, false)
	r := NewRegistry(chat, join)

	require.NoError(t, r.Acquire(context.Background(), BucketChat))

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Acquire(context.Background(), BucketChat)
	}()
	time.Sleep(20 * time.Millisecond)

	r.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter not released by registry close")
	}
	assert.ErrorIs(t, join.Acquire(context.Background()), ErrClosed)
}
