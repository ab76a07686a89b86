package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_FirstAttemptSucceeds(t *testing.T) {
	called := 0
	err := Do(context.Background(), Config{MaxRetries: 3, InitialBackoff: time.Millisecond}, func(context.Context) error {
		called++
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, called)
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	called := 0
	err := Do(context.Background(), Config{MaxRetries: 5, InitialBackoff: time.Millisecond}, func(context.Context) error {
		called++
		if called < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, called)
}

func TestDo_Exhausted(t *testing.T) {
	probeErr := errors.New("connection refused")
	called := 0
	err := Do(context.Background(), Config{MaxRetries: 3, InitialBackoff: time.Millisecond}, func(context.Context) error {
		called++
		return probeErr
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 3, called)
	assert.ErrorIs(t, err, probeErr)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestDo_NonRetryable(t *testing.T) {
	authErr := errors.New("authentication failed")
	called := 0
	err := Do(context.Background(), Config{MaxRetries: 5, InitialBackoff: time.Millisecond}, func(context.Context) error {
		called++
		return authErr
	}, func(err error) bool {
		return !errors.Is(err, authErr)
	})

	assert.Equal(t, authErr, err)
	assert.Equal(t, 1, called)
}

func TestDo_ZeroRetriesMeansOneAttempt(t *testing.T) {
	called := 0
	err := Do(context.Background(), Config{}, func(context.Context) error {
		called++
		return errors.New("nope")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, called)
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	called := 0
	err := Do(ctx, Config{MaxRetries: 5, InitialBackoff: time.Hour}, func(context.Context) error {
		called++
		cancel()
		return errors.New("down")
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, called)
}

func TestBackoff(t *testing.T) {
	cfg := Config{MaxRetries: 5, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}

	assert.Equal(t, time.Duration(0), Backoff(cfg, 0))
	assert.Equal(t, 100*time.Millisecond, Backoff(cfg, 1))
	assert.Equal(t, 200*time.Millisecond, Backoff(cfg, 2))
	assert.Equal(t, 300*time.Millisecond, Backoff(cfg, 3))
	assert.Equal(t, 300*time.Millisecond, Backoff(cfg, 4))
}

func TestBackoff_Jitter(t *testing.T) {
	cfg := Config{MaxRetries: 4, InitialBackoff: 100 * time.Millisecond, Jitter: 0.5}

	// 200ms * 0.5 * 2/4 on top of the 200ms base.
	assert.Equal(t, 250*time.Millisecond, Backoff(cfg, 2))
}
