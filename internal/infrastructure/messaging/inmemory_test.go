package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
	"github.com/enrollhub/enrollment-hub/internal/integration"
)

const testEvent integration.EventType = "test.event"

func TestInMemoryBroker_RoundTrip(t *testing.T) {
	broker := NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: time.Second})
	defer broker.Close()

	require.NoError(t, broker.Respond(testEvent, func(ctx context.Context, payload []byte) ([]byte, error) {
		assert.NotEmpty(t, CorrelationID(ctx))
		assert.Equal(t, []byte(`{"n":1}`), payload)
		return []byte(`{"ok":true}`), nil
	}))

	reply, err := broker.Request(context.Background(), testEvent, []byte(`{"n":1}`))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"ok":true}`), reply)
}

func TestInMemoryBroker_NoResponder(t *testing.T) {
	broker := NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: time.Second})
	defer broker.Close()

	_, err := broker.Request(context.Background(), testEvent, nil)
	assert.ErrorIs(t, err, ErrNoResponder)
}

func TestInMemoryBroker_Timeout(t *testing.T) {
	broker := NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: 50 * time.Millisecond})

	release := make(chan struct{})
	require.NoError(t, broker.Respond(testEvent, func(context.Context, []byte) ([]byte, error) {
		<-release
		return []byte("late"), nil
	}))

	_, err := broker.Request(context.Background(), testEvent, nil)
	assert.ErrorIs(t, err, ErrRequestTimeout)
	assert.ErrorIs(t, err, shared.ErrTimeout)

	close(release)
	broker.Close()
}

func TestInMemoryBroker_LastRegistrationWins(t *testing.T) {
	broker := NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: time.Second})
	defer broker.Close()

	require.NoError(t, broker.Respond(testEvent, func(context.Context, []byte) ([]byte, error) {
		return []byte("first"), nil
	}))
	require.NoError(t, broker.Respond(testEvent, func(context.Context, []byte) ([]byte, error) {
		return []byte("second"), nil
	}))

	reply, err := broker.Request(context.Background(), testEvent, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), reply)
}

func TestInMemoryBroker_HandlerErrorIsTransportFault(t *testing.T) {
	broker := NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: time.Second})
	defer broker.Close()

	boom := errors.New("storage down")
	require.NoError(t, broker.Respond(testEvent, func(context.Context, []byte) ([]byte, error) {
		return nil, boom
	}))

	_, err := broker.Request(context.Background(), testEvent, nil)
	assert.ErrorIs(t, err, boom)
}

func TestInMemoryBroker_ConcurrentRequests(t *testing.T) {
	broker := NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: time.Second})
	defer broker.Close()

	require.NoError(t, broker.Respond(testEvent, func(_ context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n byte) {
			defer wg.Done()
			reply, err := broker.Request(context.Background(), testEvent, []byte{n})
			assert.NoError(t, err)
			assert.Equal(t, []byte{n}, reply)
		}(byte(i))
	}
	wg.Wait()
}

func TestInMemoryBroker_Closed(t *testing.T) {
	broker := NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: time.Second})
	require.NoError(t, broker.Close())

	_, err := broker.Request(context.Background(), testEvent, nil)
	assert.ErrorIs(t, err, ErrBrokerClosed)
	assert.ErrorIs(t, broker.Respond(testEvent, nil), ErrBrokerClosed)
}

func TestInMemoryBroker_ReconnectDropsBindings(t *testing.T) {
	broker := NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: time.Second})
	defer broker.Close()

	require.NoError(t, broker.Respond(testEvent, func(context.Context, []byte) ([]byte, error) {
		return []byte("ok"), nil
	}))
	require.True(t, broker.HasResponder(testEvent))

	broker.SimulateReconnect()
	assert.False(t, broker.HasResponder(testEvent))

	_, err := broker.Request(context.Background(), testEvent, nil)
	assert.ErrorIs(t, err, ErrNoResponder)
}
