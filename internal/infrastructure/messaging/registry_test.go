package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhub/enrollment-hub/internal/integration"
)

// flakyBroker rejects the first failuresLeft Respond calls before delegating
// to the wrapped broker, mimicking a broker that is still coming up at boot.
type flakyBroker struct {
	*InMemoryBroker

	mu           sync.Mutex
	failuresLeft int
	attempts     int
}

func (f *flakyBroker) Respond(eventType integration.EventType, handler HandlerFunc) error {
	f.mu.Lock()
	f.attempts++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		f.mu.Unlock()
		return ErrNotConnected
	}
	f.mu.Unlock()
	return f.InMemoryBroker.Respond(eventType, handler)
}

func echoHandler(_ context.Context, payload []byte) ([]byte, error) {
	return payload, nil
}

func TestRegistry_StartBindsResponders(t *testing.T) {
	broker := NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: time.Second})
	defer broker.Close()

	registry := NewRegistry(RegistryConfig{Broker: broker, StartupAttempts: 1, StartupDelay: time.Millisecond})
	registry.Register("a.event", echoHandler)
	registry.Register("b.event", echoHandler)

	require.NoError(t, registry.Start(context.Background()))
	defer registry.Stop()

	assert.Equal(t, 2, registry.Len())
	assert.True(t, broker.HasResponder("a.event"))
	assert.True(t, broker.HasResponder("b.event"))
}

func TestRegistry_RegisterKeepsLastHandler(t *testing.T) {
	broker := NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: time.Second})
	defer broker.Close()

	registry := NewRegistry(RegistryConfig{Broker: broker, StartupAttempts: 1, StartupDelay: time.Millisecond})
	registry.Register(testEvent, func(context.Context, []byte) ([]byte, error) {
		return []byte("first"), nil
	})
	registry.Register(testEvent, func(context.Context, []byte) ([]byte, error) {
		return []byte("second"), nil
	})

	require.NoError(t, registry.EnsureRegistered(context.Background()))
	assert.Equal(t, 1, registry.Len())

	reply, err := broker.Request(context.Background(), testEvent, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), reply)
}

func TestRegistry_StartRetriesUntilBrokerIsUp(t *testing.T) {
	broker := &flakyBroker{
		InMemoryBroker: NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: time.Second}),
		failuresLeft:   2,
	}
	defer broker.Close()

	registry := NewRegistry(RegistryConfig{Broker: broker, StartupAttempts: 5, StartupDelay: time.Millisecond})
	registry.Register(testEvent, echoHandler)

	require.NoError(t, registry.Start(context.Background()))
	defer registry.Stop()

	assert.Equal(t, 3, broker.attempts)
	assert.True(t, broker.HasResponder(testEvent))
}

func TestRegistry_StartGivesUpButKeepsWatching(t *testing.T) {
	broker := &flakyBroker{
		InMemoryBroker: NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: time.Second}),
		failuresLeft:   100,
	}
	defer broker.Close()

	registry := NewRegistry(RegistryConfig{Broker: broker, StartupAttempts: 2, StartupDelay: time.Millisecond})
	registry.Register(testEvent, echoHandler)

	err := registry.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, broker.HasResponder(testEvent))

	// The broker recovers and announces the connection; the watcher rebinds.
	broker.mu.Lock()
	broker.failuresLeft = 0
	broker.mu.Unlock()
	broker.SimulateReconnect()

	assert.Eventually(t, func() bool {
		return broker.HasResponder(testEvent)
	}, time.Second, 5*time.Millisecond)

	registry.Stop()
}

func TestRegistry_ReRegistersAfterReconnect(t *testing.T) {
	broker := NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: time.Second})
	defer broker.Close()

	registry := NewRegistry(RegistryConfig{Broker: broker, StartupAttempts: 1, StartupDelay: time.Millisecond})
	registry.Register(testEvent, echoHandler)

	require.NoError(t, registry.Start(context.Background()))
	defer registry.Stop()
	require.True(t, broker.HasResponder(testEvent))

	broker.SimulateReconnect()

	assert.Eventually(t, func() bool {
		return broker.HasResponder(testEvent)
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_StopHaltsWatcher(t *testing.T) {
	broker := NewInMemoryBroker(InMemoryBrokerConfig{RequestTimeout: time.Second})
	defer broker.Close()

	registry := NewRegistry(RegistryConfig{Broker: broker, StartupAttempts: 1, StartupDelay: time.Millisecond})
	registry.Register(testEvent, echoHandler)

	require.NoError(t, registry.Start(context.Background()))
	registry.Stop()

	// After Stop the watcher is gone: a reconnect drops the binding and
	// nothing rebinds it.
	broker.SimulateReconnect()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, broker.HasResponder(testEvent))
}
