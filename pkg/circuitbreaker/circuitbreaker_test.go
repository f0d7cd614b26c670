package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("gateway down")

func failing(context.Context) error { return errDown }
func succeeding(context.Context) error { return nil }

func testConfig() Config {
	return Config{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          20 * time.Millisecond,
	}
}

func tripOpen(t *testing.T, cb *CircuitBreaker) {
	t.Helper()
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(context.Background(), failing), errDown)
	}
	require.Equal(t, StateOpen, cb.State())
}

func TestExecute_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(testConfig())

	require.ErrorIs(t, cb.Execute(context.Background(), failing), errDown)
	require.ErrorIs(t, cb.Execute(context.Background(), failing), errDown)
	assert.Equal(t, StateClosed, cb.State())

	require.ErrorIs(t, cb.Execute(context.Background(), failing), errDown)
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(context.Background(), succeeding), ErrCircuitOpen)
}

func TestExecute_SuccessResetsFailureCount(t *testing.T) {
	cb := New(testConfig())

	require.ErrorIs(t, cb.Execute(context.Background(), failing), errDown)
	require.ErrorIs(t, cb.Execute(context.Background(), failing), errDown)
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	require.ErrorIs(t, cb.Execute(context.Background(), failing), errDown)
	require.ErrorIs(t, cb.Execute(context.Background(), failing), errDown)

	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_RecoversThroughHalfOpen(t *testing.T) {
	cb := New(testConfig())
	tripOpen(t, cb)

	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig())
	tripOpen(t, cb)

	time.Sleep(25 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.ErrorIs(t, cb.Execute(context.Background(), failing), errDown)
	assert.Equal(t, StateOpen, cb.State())
}

func TestExecute_HalfOpenLimitsInFlight(t *testing.T) {
	cb := New(testConfig())
	tripOpen(t, cb)

	time.Sleep(25 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = cb.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, cb.Execute(context.Background(), succeeding), ErrTooManyRequests)
	close(release)
}

func TestOnStateChange(t *testing.T) {
	type transition struct{ from, to State }
	var transitions []transition

	config := testConfig()
	config.OnStateChange = func(_ string, from, to State) {
		transitions = append(transitions, transition{from, to})
	}
	cb := New(config)
	tripOpen(t, cb)

	time.Sleep(25 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	require.NoError(t, cb.Execute(context.Background(), succeeding))

	assert.Equal(t, []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}, transitions)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
