package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/enrollhub/enrollment-hub/internal/integration"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS BROKER
// ══════════════════════════════════════════════════════════════════════════════

// RedisBroker implements Broker over Redis lists.
//
// A request is LPUSHed to "rpc:req:<event-type>" together with the name of a
// per-request reply list; the responder loop BRPOPs requests, handles each
// delivery on its own goroutine and LPUSHes the reply to the reply list, from
// which the caller BRPOPs with the configured timeout.
//
// BRPOP removes the request atomically, so delivery is at-most-once: if the
// responder process dies mid-handling the request is gone and the caller's
// timeout is the only recovery, matching the bridge contract.
type RedisBroker struct {
	client  *redis.Client
	timeout time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	consumers map[integration.EventType]context.CancelFunc
	closed    bool

	connectCh chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// RedisBrokerConfig contains configuration for RedisBroker.
type RedisBrokerConfig struct {
	// Client is the Redis client to use.
	Client *redis.Client

	// RequestTimeout bounds how long a caller waits for a reply.
	RequestTimeout time.Duration

	// HealthCheckInterval is how often connectivity is probed to detect
	// reconnects. Default: 5s.
	HealthCheckInterval time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// NewRedisBroker creates a Redis-backed broker and starts its connection
// monitor. The monitor emits a connect notification on every transition from
// unreachable to reachable so registries can re-bind responders.
func NewRedisBroker(config RedisBrokerConfig) (*RedisBroker, error) {
	if config.Client == nil {
		return nil, errors.New("messaging: redis client is required")
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	if config.HealthCheckInterval <= 0 {
		config.HealthCheckInterval = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &RedisBroker{
		client:    config.Client,
		timeout:   config.RequestTimeout,
		logger:    config.Logger,
		consumers: make(map[integration.EventType]context.CancelFunc),
		connectCh: make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}

	b.wg.Add(1)
	go b.monitorConnection(config.HealthCheckInterval)

	return b, nil
}

func requestList(eventType integration.EventType) string {
	return "rpc:req:" + string(eventType)
}

func replyList(correlationID string) string {
	return "rpc:reply:" + correlationID
}

// Request sends the payload and blocks for the reply.
func (b *RedisBroker) Request(ctx context.Context, eventType integration.EventType, payload []byte) ([]byte, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	b.mu.Unlock()

	correlationID := uuid.NewString()
	replyTo := replyList(correlationID)

	data, err := json.Marshal(requestEnvelope{
		CorrelationID: correlationID,
		EventType:     string(eventType),
		ReplyTo:       replyTo,
		SentAt:        time.Now().UTC(),
		Payload:       payload,
	})
	if err != nil {
		return nil, fmt.Errorf("messaging: marshal request: %w", err)
	}

	if err := b.client.LPush(ctx, requestList(eventType), data).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	// The reply list is request-scoped; expire it so abandoned replies do
	// not accumulate when the caller times out first.
	b.client.Expire(ctx, replyTo, b.timeout*2)

	res, err := b.client.BRPop(ctx, b.timeout, replyTo).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRequestTimeout
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	// BRPop returns [key, value].
	var envelope replyEnvelope
	if err := json.Unmarshal([]byte(res[1]), &envelope); err != nil {
		return nil, fmt.Errorf("messaging: unmarshal reply: %w", err)
	}

	return envelope.Payload, nil
}

// Respond binds the responder for the event type. A previous consumer loop
// for the same type is stopped first, so re-binding is idempotent and the
// last registration wins.
func (b *RedisBroker) Respond(eventType integration.EventType, handler HandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}

	// Verify connectivity before claiming the binding succeeded; the boot
	// retry loop depends on this failing while Redis is unreachable.
	pingCtx, cancel := context.WithTimeout(b.ctx, 2*time.Second)
	err := b.client.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	if stop, ok := b.consumers[eventType]; ok {
		stop()
	}

	consumerCtx, stop := context.WithCancel(b.ctx)
	b.consumers[eventType] = stop

	b.wg.Add(1)
	go b.consumeLoop(consumerCtx, eventType, handler)

	b.logger.Info("responder bound", "event_type", eventType)
	return nil
}

// consumeLoop pops requests for one event type and dispatches deliveries.
func (b *RedisBroker) consumeLoop(ctx context.Context, eventType integration.EventType, handler HandlerFunc) {
	defer b.wg.Done()

	list := requestList(eventType)

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := b.client.BRPop(ctx, time.Second, list).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			b.logger.Warn("request pop failed", "event_type", eventType, "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var envelope requestEnvelope
		if err := json.Unmarshal([]byte(res[1]), &envelope); err != nil {
			b.logger.Error("malformed request dropped", "event_type", eventType, "error", err)
			continue
		}

		// Deliveries for different requests may run concurrently; each one
		// gets its own goroutine and carries the correlation id.
		b.wg.Add(1)
		go func(envelope requestEnvelope) {
			defer b.wg.Done()
			b.handleDelivery(ctx, eventType, envelope, handler)
		}(envelope)
	}
}

// handleDelivery runs the handler for one request and pushes the reply.
func (b *RedisBroker) handleDelivery(ctx context.Context, eventType integration.EventType, envelope requestEnvelope, handler HandlerFunc) {
	deliveryCtx := WithCorrelationID(context.WithoutCancel(ctx), envelope.CorrelationID)

	reply, err := handler(deliveryCtx, envelope.Payload)
	if err != nil {
		// Handlers convert business faults into replies; an error here is
		// a transport-level problem. The caller will time out and re-issue.
		b.logger.Error("delivery handler failed",
			"event_type", eventType,
			"correlation_id", envelope.CorrelationID,
			"error", err,
		)
		return
	}

	data, err := json.Marshal(replyEnvelope{
		CorrelationID: envelope.CorrelationID,
		Payload:       reply,
	})
	if err != nil {
		b.logger.Error("marshal reply failed",
			"event_type", eventType,
			"correlation_id", envelope.CorrelationID,
			"error", err,
		)
		return
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := b.client.LPush(pushCtx, envelope.ReplyTo, data).Err(); err != nil {
		b.logger.Error("push reply failed",
			"event_type", eventType,
			"correlation_id", envelope.CorrelationID,
			"error", err,
		)
		return
	}
	b.client.Expire(pushCtx, envelope.ReplyTo, b.timeout*2)
}

// ConnectNotifications returns the connect notification channel.
func (b *RedisBroker) ConnectNotifications() <-chan struct{} {
	return b.connectCh
}

// monitorConnection probes Redis and emits a notification on every
// unreachable→reachable transition.
func (b *RedisBroker) monitorConnection(interval time.Duration) {
	defer b.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wasHealthy := true

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(b.ctx, 2*time.Second)
		err := b.client.Ping(pingCtx).Err()
		cancel()

		healthy := err == nil
		if healthy && !wasHealthy {
			b.logger.Info("broker connection restored")
			select {
			case b.connectCh <- struct{}{}:
			default:
			}
		}
		if !healthy && wasHealthy {
			b.logger.Warn("broker connection lost", "error", err)
		}
		wasHealthy = healthy
	}
}

// Close stops all consumer loops and the connection monitor.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return nil
}
