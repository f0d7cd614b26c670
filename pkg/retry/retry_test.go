package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithMaxAttempts(5), WithFixedDelay(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	transient := errors.New("still down")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return transient
	}, WithMaxAttempts(3), WithFixedDelay(time.Millisecond))

	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	rejected := errors.New("rejected")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(rejected)
	}, WithMaxAttempts(5), WithFixedDelay(time.Millisecond))

	assert.ErrorIs(t, err, rejected)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	}, WithMaxAttempts(10), WithFixedDelay(time.Second))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryReportsAttempts(t *testing.T) {
	var attempts []int
	_ = Do(context.Background(), func(context.Context) error {
		return errors.New("transient")
	}, WithMaxAttempts(3), WithFixedDelay(time.Millisecond),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
			assert.Error(t, err)
			assert.Equal(t, time.Millisecond, delay)
		}))

	// No callback after the final attempt.
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestPermanent_NilPassthrough(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

func TestDelayFor_BackoffIsCapped(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(300*time.Millisecond))
	r.config.JitterFactor = 0

	assert.Equal(t, 100*time.Millisecond, r.delayFor(1))
	assert.Equal(t, 200*time.Millisecond, r.delayFor(2))
	assert.Equal(t, 300*time.Millisecond, r.delayFor(3))
	assert.Equal(t, 300*time.Millisecond, r.delayFor(10))
}
