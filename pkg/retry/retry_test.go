package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestDo(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("not ready")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		boom := errors.New("connection refused")
		err := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
			calls++
			return boom
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		bad := errors.New("bad credentials")
		err := Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
			calls++
			return Permanent(bad)
		})
		assert.ErrorIs(t, err, bad)
		assert.Equal(t, 1, calls)
	})

	t.Run("aborts when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Do(ctx, fastConfig(5), func(ctx context.Context) error {
			t.Fatal("fn must not run on a cancelled context")
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDoWithLog(t *testing.T) {
	var attempts []int
	err := DoWithLog(context.Background(), fastConfig(3), "postgres", func(ctx context.Context) error {
		return errors.New("down")
	}, func(attempt int, err error, next time.Duration) {
		attempts = append(attempts, attempt)
		assert.LessOrEqual(t, next, 2*time.Millisecond)
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: ")
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
