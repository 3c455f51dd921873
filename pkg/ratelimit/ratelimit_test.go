package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives the limiter without real waiting: sleeps advance the
// clock instead of blocking.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	onWait func(time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	if c.onWait != nil {
		c.onWait(d)
	}
	return nil
}

func newTestLimiter(rps float64, burst int) (*RateLimiter, *fakeClock) {
	clock := newFakeClock()
	l := New(rps, burst)
	l.now = clock.Now
	l.sleep = clock.Sleep
	l.lastRefill = clock.now
	return l, clock
}

func TestBurstThenThrottle(t *testing.T) {
	l, clock := newTestLimiter(2, 4)
	ctx := context.Background()

	// Burst capacity grants 4 immediately.
	for i := 0; i < 4; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if len(clock.slept) != 0 {
		t.Fatalf("expected no waits inside burst, got %d", len(clock.slept))
	}

	// Fifth call must wait for one token at 2 rps = 500ms.
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire after burst: %v", err)
	}
	if len(clock.slept) == 0 {
		t.Fatal("expected a wait once the burst is exhausted")
	}

	var total time.Duration
	for _, d := range clock.slept {
		total += d
	}
	if total < 400*time.Millisecond || total > 600*time.Millisecond {
		t.Fatalf("expected ~500ms wait, got %s", total)
	}
}

func TestSustainedRateConverges(t *testing.T) {
	l, clock := newTestLimiter(10, 1)
	ctx := context.Background()
	start := clock.now

	for i := 0; i < 50; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}

	elapsed := clock.now.Sub(start)
	// 50 grants at 10 rps with burst 1 needs at least 4.9s of simulated time.
	if elapsed < 4800*time.Millisecond {
		t.Fatalf("sustained rate too fast: 50 grants in %s", elapsed)
	}
}

func TestWaitCappedPerIteration(t *testing.T) {
	l, clock := newTestLimiter(0.1, 1) // one token per 10s
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	for _, d := range clock.slept {
		if d > time.Second {
			t.Fatalf("single wait iteration exceeded 1s cap: %s", d)
		}
	}
	if len(clock.slept) < 9 {
		t.Fatalf("expected ~10 capped wait iterations, got %d", len(clock.slept))
	}
}

func TestAcquireProgressesOnFractionalRefills(t *testing.T) {
	// At 0.1 rps each capped 1s wait refills only 0.1 tokens, so ten
	// refills sum to 0.9999... and must still grant.
	l, clock := newTestLimiter(0.1, 1)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	for _, d := range clock.slept {
		if d <= 0 {
			t.Fatalf("wait iteration did not advance the clock: %s", d)
		}
	}
	if got := len(clock.slept); got != 10 {
		t.Fatalf("expected 10 wait iterations for one token at 0.1 rps, got %d", got)
	}
}

func TestAcquireRespectsCancelledContext(t *testing.T) {
	l, _ := newTestLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	cancel()
	l.sleep = sleepCtx // real sleep observes the cancelled context
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("expected context error for cancelled acquire")
	}
}

func TestExecuteRunsAfterAcquire(t *testing.T) {
	l, _ := newTestLimiter(5, 5)
	ran := false
	err := l.Execute(context.Background(), func() error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("execute: ran=%v err=%v", ran, err)
	}
}
