package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/enrollhub/enrollment-hub/internal/integration"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY BROKER
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryBroker is a channel-based Broker for tests and single-process runs.
// It reproduces the transport semantics of the Redis broker: one responder per
// event type, last-registration-wins, at-most-once delivery, concurrent
// deliveries each on their own goroutine, and connect notifications that
// invalidate previous bindings.
type InMemoryBroker struct {
	mu         sync.RWMutex
	responders map[integration.EventType]HandlerFunc
	connectCh  chan struct{}
	timeout    time.Duration
	logger     *slog.Logger
	closed     bool
	wg         sync.WaitGroup
}

// InMemoryBrokerConfig contains configuration for InMemoryBroker.
type InMemoryBrokerConfig struct {
	// RequestTimeout bounds how long a caller waits for a reply.
	RequestTimeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// NewInMemoryBroker creates a new in-memory broker.
func NewInMemoryBroker(config InMemoryBrokerConfig) *InMemoryBroker {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &InMemoryBroker{
		responders: make(map[integration.EventType]HandlerFunc),
		connectCh:  make(chan struct{}, 1),
		timeout:    config.RequestTimeout,
		logger:     config.Logger,
	}
}

// Request delivers the payload to the bound responder and waits for the reply.
func (b *InMemoryBroker) Request(ctx context.Context, eventType integration.EventType, payload []byte) ([]byte, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrBrokerClosed
	}
	handler, ok := b.responders[eventType]
	b.mu.RUnlock()

	if !ok {
		return nil, ErrNoResponder
	}

	correlationID := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type outcome struct {
		reply []byte
		err   error
	}
	done := make(chan outcome, 1)

	// Each delivery runs on its own worker, like a broker-provided thread.
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		reply, err := handler(WithCorrelationID(context.Background(), correlationID), payload)
		done <- outcome{reply: reply, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ErrRequestTimeout
	case out := <-done:
		if out.err != nil {
			// Transport-level fault; responders convert business faults
			// into replies before this point.
			return nil, out.err
		}
		return out.reply, nil
	}
}

// Respond binds the responder for the event type. Last registration wins.
func (b *InMemoryBroker) Respond(eventType integration.EventType, handler HandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}

	b.responders[eventType] = handler
	b.logger.Debug("responder bound", "event_type", eventType)
	return nil
}

// ConnectNotifications returns the connect notification channel.
func (b *InMemoryBroker) ConnectNotifications() <-chan struct{} {
	return b.connectCh
}

// SimulateReconnect drops all bindings and emits a connect notification,
// mimicking a broker reconnect that invalidated registrations.
func (b *InMemoryBroker) SimulateReconnect() {
	b.mu.Lock()
	b.responders = make(map[integration.EventType]HandlerFunc)
	b.mu.Unlock()

	select {
	case b.connectCh <- struct{}{}:
	default:
	}
}

// HasResponder reports whether a responder is bound for the event type.
func (b *InMemoryBroker) HasResponder(eventType integration.EventType) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.responders[eventType]
	return ok
}

// Close shuts the broker down and waits for in-flight deliveries.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
