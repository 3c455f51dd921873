package ratelimit

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
)

// RetryOptions controls WithRetry. Zero values fall back to the defaults
// below.
type RetryOptions struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Retryable         func(error) bool
	Logger            *logrus.Entry

	// sleep is injectable for tests.
	sleep func(context.Context, time.Duration) error
}

func (o *RetryOptions) withDefaults() RetryOptions {
	opts := RetryOptions{}
	if o != nil {
		opts = *o
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 10 * time.Second
	}
	if opts.BackoffMultiplier <= 0 {
		opts.BackoffMultiplier = 2
	}
	if opts.Retryable == nil {
		opts.Retryable = IsRetryable
	}
	if opts.sleep == nil {
		opts.sleep = sleepCtx
	}
	return opts
}

// WithRetry runs fn up to MaxAttempts times with exponential backoff.
// Only safe for idempotent operations; connector calls are all read-only
// fetches, which satisfies that.
func WithRetry(ctx context.Context, opts *RetryOptions, fn func() error) error {
	o := opts.withDefaults()

	var lastErr error
	delay := o.InitialDelay
	for attempt := 1; attempt <= o.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !o.Retryable(lastErr) || attempt == o.MaxAttempts {
			break
		}

		if o.Logger != nil {
			o.Logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay.String(),
			}).Warnf("retryable error: %v", lastErr)
		}

		if err := o.sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * o.BackoffMultiplier)
		if delay > o.MaxDelay {
			delay = o.MaxDelay
		}
	}

	if o.Logger != nil {
		o.Logger.Errorf("giving up after %d attempt(s): %v", o.MaxAttempts, lastErr)
	}
	return lastErr
}

// IsRetryable reports whether err looks transient: network-level failures,
// HTTP 429 or any 5xx from the Google API client.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{"ECONNRESET", "ETIMEDOUT", "ENOTFOUND", "connection reset", "connection refused"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
