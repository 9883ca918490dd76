package xretry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryer_Do(t *testing.T) {
	t.Run("SuccessOnFirstAttempt", func(t *testing.T) {
		r := NewRetryer()
		var attempts int

		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("SuccessAfterRetry", func(t *testing.T) {
		r := NewRetryer(WithAttempts(3), WithBackoff(NewFixedBackoff(0)))
		var attempts int

		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("connection reset")
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("FailAfterMaxAttempts", func(t *testing.T) {
		r := NewRetryer(WithAttempts(3), WithBackoff(NewFixedBackoff(0)))
		var attempts int

		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errors.New("persistent error")
		})

		assert.EqualError(t, err, "persistent error")
		assert.Equal(t, 3, attempts)
	})

	t.Run("PermanentErrorStops", func(t *testing.T) {
		r := NewRetryer(WithAttempts(5), WithBackoff(NewFixedBackoff(0)))
		var attempts int
		cause := errors.New("no active log")

		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return NewPermanentError(cause)
		})

		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 1, attempts)
	})

	t.Run("RetryIfFilters", func(t *testing.T) {
		retryable := errors.New("transport")
		r := NewRetryer(
			WithAttempts(5),
			WithBackoff(NewFixedBackoff(0)),
			WithRetryIf(func(err error) bool { return errors.Is(err, retryable) }),
		)
		var attempts int

		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts == 1 {
				return retryable
			}
			return errors.New("not found")
		})

		assert.EqualError(t, err, "not found")
		assert.Equal(t, 2, attempts)
	})

	t.Run("OnRetryIsOneBased", func(t *testing.T) {
		var seen []int
		r := NewRetryer(
			WithAttempts(3),
			WithBackoff(NewFixedBackoff(0)),
			WithOnRetry(func(attempt int, _ error) { seen = append(seen, attempt) }),
		)

		_ = r.Do(context.Background(), func(ctx context.Context) error { //nolint:errcheck // 只关心回调
			return errors.New("fail")
		})
		require.NotEmpty(t, seen)
		assert.Equal(t, 1, seen[0])
		for i := 1; i < len(seen); i++ {
			assert.Equal(t, seen[i-1]+1, seen[i])
		}
	})

	t.Run("NilGuards", func(t *testing.T) {
		var r *Retryer
		assert.ErrorIs(t, r.Do(context.Background(), func(context.Context) error { return nil }), ErrNilRetryer)
		assert.ErrorIs(t, NewRetryer().Do(context.Background(), nil), ErrNilFunc)
	})
}

func TestDoWithResult(t *testing.T) {
	r := NewRetryer(WithAttempts(3), WithBackoff(NewFixedBackoff(time.Millisecond)))
	var attempts int

	got, err := DoWithResult(context.Background(), r, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("503")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, attempts)

	_, err = DoWithResult[string](context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNilRetryer)
}

func TestRetryer_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRetryer(WithAttempts(5), WithBackoff(NewFixedBackoff(time.Second)))
	var attempts int
	err := r.Do(ctx, func(ctx context.Context) error {
		attempts++
		return errors.New("fail")
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, attempts, 1)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(errors.New("x")))
	assert.False(t, IsRetryable(NewPermanentError(errors.New("x"))))
	assert.False(t, IsRetryable(errors.Join(errors.New("wrap"), NewPermanentError(nil))))
	assert.True(t, IsPermanent(NewPermanentError(nil)))
	assert.False(t, IsPermanent(nil))
	assert.Equal(t, "permanent error", NewPermanentError(nil).Error())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), NewFixedBackoff(-time.Second).NextDelay(3))
	assert.Equal(t, time.Second, NewFixedBackoff(time.Second).NextDelay(9))

	b := NewExponentialBackoff(
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(time.Second),
		WithMultiplier(2),
		WithJitter(0),
	)
	assert.Equal(t, 100*time.Millisecond, b.NextDelay(0))
	assert.Equal(t, 100*time.Millisecond, b.NextDelay(1))
	assert.Equal(t, 200*time.Millisecond, b.NextDelay(2))
	assert.Equal(t, 400*time.Millisecond, b.NextDelay(3))
	assert.Equal(t, time.Second, b.NextDelay(10))
	assert.Equal(t, time.Second, b.NextDelay(5000))

	j := NewExponentialBackoff(WithInitialDelay(time.Second), WithJitter(5), WithMaxDelay(time.Hour))
	for range 100 {
		d := j.NextDelay(1)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}
