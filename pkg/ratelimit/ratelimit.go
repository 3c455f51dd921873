package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// maxSleepPerWait keeps a single wait iteration short so a cancelled
// context is noticed quickly even at very low rates.
const maxSleepPerWait = time.Second

// tokenEpsilon absorbs float drift when fractional refills approach a
// whole token.
const tokenEpsilon = 1e-9

// RateLimiter is an in-memory token bucket. It throttles outbound calls to
// quota-limited APIs: steady-state never exceeds requestsPerSecond, short
// bursts are allowed up to burstSize. Single process only, it is not a
// distributed limiter.
type RateLimiter struct {
	mu         sync.Mutex
	rate       float64
	capacity   float64
	tokens     float64
	lastRefill time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a limiter with burstSize defaulting to requestsPerSecond.
func New(requestsPerSecond float64, burstSize int) *RateLimiter {
	capacity := float64(burstSize)
	if burstSize <= 0 {
		capacity = requestsPerSecond
	}
	if capacity < 1 {
		capacity = 1
	}

	l := &RateLimiter{
		rate:     requestsPerSecond,
		capacity: capacity,
		tokens:   capacity,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	l.lastRefill = l.now()
	return l
}

// Acquire blocks until one token is available or the context is cancelled.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.take()
		if ok {
			return nil
		}
		if wait > maxSleepPerWait {
			wait = maxSleepPerWait
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Execute acquires a token and then runs fn.
func (l *RateLimiter) Execute(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	return fn()
}

// take refills the bucket from elapsed wall time and grabs a token if one is
// available. Otherwise it returns how long until a full token accumulates.
func (l *RateLimiter) take() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		l.tokens += elapsed * l.rate
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
		l.lastRefill = now
	}

	// Fractional refills accumulate float error: ten 0.1-token refills sum
	// to just under 1.0, which must still count as a full token or the
	// computed wait truncates to zero and Acquire never progresses.
	if l.tokens >= 1-tokenEpsilon {
		l.tokens--
		if l.tokens < 0 {
			l.tokens = 0
		}
		return 0, true
	}

	missing := 1 - l.tokens
	wait := time.Duration(math.Ceil(missing / l.rate * float64(time.Second)))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
