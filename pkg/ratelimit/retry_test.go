package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestWithRetryEventualSuccess(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	opts := &RetryOptions{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	err := WithRetry(context.Background(), opts, func() error {
		attempts++
		if attempts < 3 {
			return &googleapi.Error{Code: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}

	// Geometric backoff: 100ms then 200ms.
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("expected %d delays, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d: expected %s, got %s", i, want[i], delays[i])
		}
	}
}

func TestWithRetryDelayCappedAtMax(t *testing.T) {
	var delays []time.Duration
	opts := &RetryOptions{
		MaxAttempts:  6,
		InitialDelay: time.Second,
		MaxDelay:     4 * time.Second,
		sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	err := WithRetry(context.Background(), opts, func() error {
		return &googleapi.Error{Code: 429}
	})
	if err == nil {
		t.Fatal("expected final error")
	}

	for _, d := range delays {
		if d > 4*time.Second {
			t.Fatalf("delay exceeded cap: %s", d)
		}
	}
	if delays[len(delays)-1] != 4*time.Second {
		t.Fatalf("expected last delay at cap, got %s", delays[len(delays)-1])
	}
}

func TestWithRetryNonRetryableFailsFast(t *testing.T) {
	attempts := 0
	opts := &RetryOptions{sleep: noSleep}
	badReq := &googleapi.Error{Code: 400}

	err := WithRetry(context.Background(), opts, func() error {
		attempts++
		return badReq
	})
	if !errors.Is(err, badReq) {
		t.Fatalf("expected original error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestWithRetryExhaustionReturnsLastError(t *testing.T) {
	attempts := 0
	opts := &RetryOptions{MaxAttempts: 3, sleep: noSleep}

	err := WithRetry(context.Background(), opts, func() error {
		attempts++
		return errors.New("read tcp: ECONNRESET")
	})
	if err == nil || attempts != 3 {
		t.Fatalf("expected 3 attempts then error, got attempts=%d err=%v", attempts, err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &googleapi.Error{Code: 429}, true},
		{"server error", &googleapi.Error{Code: 502}, true},
		{"bad request", &googleapi.Error{Code: 400}, false},
		{"not found", &googleapi.Error{Code: 404}, false},
		{"conn reset", errors.New("read: ECONNRESET"), true},
		{"dns", errors.New("lookup api.example.com: ENOTFOUND"), true},
		{"plain", errors.New("invalid grant"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
