// Package ratelimit implements the outbound send quotas Twitch imposes on
// chat connections: windowed counters for chat and join traffic, and the
// layered whisper quota.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned to waiters released by Close.
var ErrClosed = errors.New("ratelimit: bucket closed")

// Bucket names used by the gateway.
const (
	BucketChat          = "chat"
	BucketJoin          = "join"
	BucketWhisperSecond = "whisper-second"
	BucketWhisperMinute = "whisper-minute"
)

// Default Twitch limits.
const (
	DefaultChatLimit  = 20
	DefaultChatWindow = 30 * time.Second

	DefaultJoinLimit  = 50
	DefaultJoinWindow = 15 * time.Second

	DefaultWhisperSecondLimit = 3
	DefaultWhisperMinuteLimit = 200
	DefaultWhisperAccounts    = 40
)

// Bucket is a windowed usage counter. Acquire consumes one slot, blocking
// while the bucket is at capacity until the next reset. A self-renewing
// bucket re-arms its own timer on every reset; the timer starts lazily on
// the first consume so idle gateways keep no timers running.
type Bucket struct {
	name      string
	capacity  int
	window    time.Duration
	selfRenew bool

	mu       sync.Mutex
	count    int
	deadline time.Time
	resetCh  chan struct{}
	timer    *time.Timer
	closed   bool
}

// NewBucket creates a bucket with the given capacity and reset window.
// When selfRenew is true the bucket resets itself every window once the
// first slot has been consumed.
func NewBucket(name string, capacity int, window time.Duration, selfRenew bool) *Bucket {
	return &Bucket{
		name:      name,
		capacity:  capacity,
		window:    window,
		selfRenew: selfRenew,
		resetCh:   make(chan struct{}),
	}
}

// Name returns the bucket's name.
func (b *Bucket) Name() string { return b.name }

// Remaining reports how many slots are left in the current window.
func (b *Bucket) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity - b.count
}

// Acquire consumes one slot, blocking until the bucket resets if it is at
// capacity. Returns ctx.Err() if the context is cancelled while waiting and
// ErrClosed if the bucket is closed.
func (b *Bucket) Acquire(ctx context.Context) error {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return ErrClosed
		}
		if b.count < b.capacity {
			b.count++
			if b.selfRenew && b.timer == nil {
				b.deadline = time.Now().Add(b.window)
				b.timer = time.AfterFunc(b.window, b.onTimer)
			}
			b.mu.Unlock()
			return nil
		}
		ch := b.resetCh
		b.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Reset zeroes the count, advances the deadline, and releases every waiter.
// Self-renewing buckets re-arm their timer for the next window.
func (b *Bucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *Bucket) resetLocked() {
	if b.closed {
		return
	}
	b.count = 0
	b.deadline = time.Now().Add(b.window)
	close(b.resetCh)
	b.resetCh = make(chan struct{})
	if b.selfRenew && b.timer != nil {
		b.timer.Reset(b.window)
	}
}

func (b *Bucket) onTimer() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

// Close stops the timer and releases every waiter with ErrClosed. The
// bucket cannot be used afterwards.
func (b *Bucket) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
	}
	close(b.resetCh)
}

// Registry groups named buckets so callers gate sends by category without
// holding references to individual buckets.
type Registry struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
}

// NewRegistry creates a registry holding the given buckets.
func NewRegistry(buckets ...*Bucket) *Registry {
	r := &Registry{buckets: make(map[string]*Bucket, len(buckets))}
	for _, b := range buckets {
		r.buckets[b.name] = b
	}
	return r
}

// Acquire consumes a slot from the named bucket, blocking as Bucket.Acquire
// does. Unknown bucket names pass through unthrottled.
func (r *Registry) Acquire(ctx context.Context, name string) error {
	r.mu.RLock()
	b := r.buckets[name]
	r.mu.RUnlock()
	if b == nil {
		return nil
	}
	return b.Acquire(ctx)
}

// Reset resets the named bucket.
func (r *Registry) Reset(name string) {
	r.mu.RLock()
	b := r.buckets[name]
	r.mu.RUnlock()
	if b != nil {
		b.Reset()
	}
}

// Close closes every bucket, releasing all suspended waiters.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.buckets {
		b.Close()
	}
}
