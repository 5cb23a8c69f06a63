package ratelimit

import (
	"context"
	"sync"
	"time"
)

// WhisperQuota layers the three whisper limits: messages per second,
// messages per minute, and distinct recipient accounts per rolling day.
// A recipient already counted today does not consume another account slot.
type WhisperQuota struct {
	perSecond *Bucket
	perMinute *Bucket

	mu           sync.Mutex
	accounts     map[string]struct{}
	accountLimit int
	dailyReset   time.Time
	resetCh      chan struct{}
	timer        *time.Timer
	closed       bool
}

// NewWhisperQuota creates a quota with the default Twitch whisper limits.
// dailyReset is the moment the account set next rolls over; a zero value
// schedules the first rollover a day out.
func NewWhisperQuota(dailyReset time.Time) *WhisperQuota {
	if dailyReset.IsZero() {
		dailyReset = time.Now().UTC().Add(24 * time.Hour)
	}
	q := &WhisperQuota{
		perSecond:    NewBucket(BucketWhisperSecond, DefaultWhisperSecondLimit, time.Second, true),
		perMinute:    NewBucket(BucketWhisperMinute, DefaultWhisperMinuteLimit, time.Minute, true),
		accounts:     make(map[string]struct{}),
		accountLimit: DefaultWhisperAccounts,
		dailyReset:   dailyReset,
		resetCh:      make(chan struct{}),
	}
	q.timer = time.AfterFunc(time.Hour, q.onTimer)
	return q
}

// Acquire reserves capacity for one whisper to user, blocking on whichever
// limit is exhausted. The account slot is claimed atomically with the limit
// check so the distinct-recipient set can never exceed its cap.
func (q *WhisperQuota) Acquire(ctx context.Context, user string) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}
		q.maybeRolloverLocked()
		if _, known := q.accounts[user]; known || len(q.accounts) < q.accountLimit {
			q.accounts[user] = struct{}{}
			q.mu.Unlock()
			break
		}
		ch := q.resetCh
		q.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := q.perSecond.Acquire(ctx); err != nil {
		return err
	}
	return q.perMinute.Acquire(ctx)
}

// Accounts reports how many distinct recipients are counted against the
// daily limit.
func (q *WhisperQuota) Accounts() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.accounts)
}

// NextReset returns the moment the account set rolls over.
func (q *WhisperQuota) NextReset() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dailyReset
}

// ResetAccounts clears the recipient set and advances the deadline by one
// day, but only once the current deadline has passed.
func (q *WhisperQuota) ResetAccounts() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.maybeRolloverLocked()
}

func (q *WhisperQuota) maybeRolloverLocked() {
	now := time.Now().UTC()
	if q.closed || now.Before(q.dailyReset) {
		return
	}
	q.accounts = make(map[string]struct{})
	q.dailyReset = now.Add(24 * time.Hour)
	close(q.resetCh)
	q.resetCh = make(chan struct{})
}

func (q *WhisperQuota) onTimer() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.maybeRolloverLocked()
	q.timer.Reset(time.Hour)
	q.mu.Unlock()
}

// Close stops the rollover timer and releases any waiter with ErrClosed.
func (q *WhisperQuota) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.timer.Stop()
	close(q.resetCh)
	q.mu.Unlock()

	q.perSecond.Close()
	q.perMinute.Close()
}
