// Package retry runs an operation with capped exponential backoff.
//
// runmetrics uses it for the database connectivity probe at startup: the
// analytical store is often still booting when the service container starts,
// so the first pings are expected to fail.
//
//	err := retry.Do(ctx, retry.Config{
//	    MaxRetries:     5,
//	    InitialBackoff: 200 * time.Millisecond,
//	    MaxBackoff:     5 * time.Second,
//	}, client.Ping, nil)
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config controls how often and how quickly an operation is retried.
type Config struct {
	// MaxRetries is the total number of attempts. Values below 1 mean 1.
	MaxRetries int

	// InitialBackoff is the wait before the second attempt. It doubles for
	// every following attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps a single wait. Zero means uncapped.
	MaxBackoff time.Duration

	// Jitter in [0,1] adds a fraction of the backoff that grows with the
	// attempt number.
	Jitter float64
}

// ShouldRetryFunc reports whether err is worth another attempt.
// A nil ShouldRetryFunc retries every error.
type ShouldRetryFunc func(error) bool

// Do calls fn until it succeeds, shouldRetry rejects the error, the attempts
// run out or ctx is done. The last error is wrapped when attempts run out.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error, shouldRetry ShouldRetryFunc) error {
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(Backoff(cfg, attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// Backoff returns the wait before the given attempt (attempt >= 1).
func Backoff(cfg Config, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	backoff := time.Duration(math.Pow(2, float64(attempt-1)) * float64(cfg.InitialBackoff))
	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}

	if cfg.Jitter > 0 && cfg.MaxRetries > 0 {
		backoff += time.Duration(float64(backoff) * cfg.Jitter * float64(attempt) / float64(cfg.MaxRetries))
	}

	return backoff
}
