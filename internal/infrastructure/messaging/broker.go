// Package messaging implements the cross-service request/reply bridge.
//
// The bridge turns an asynchronous broker channel into a synchronous-looking
// call: the caller sends a request envelope for an integration event type and
// blocks until the bound responder replies or the timeout expires. Delivery is
// at-most-once per request to a single responder instance with no cross-crash
// retry - a timed-out caller must re-issue the request.
//
// Two implementations are provided, mirroring each other: an in-memory broker
// for tests and single-process runs, and a Redis-list based broker for
// distributed deployments.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/enrollhub/enrollment-hub/internal/domain/shared"
	"github.com/enrollhub/enrollment-hub/internal/integration"
)

// Transport-level errors. Only broker/network unavailability surfaces to the
// caller as an error; business failures always arrive inside the reply.
var (
	// ErrBrokerClosed is returned when operations are attempted on a closed broker.
	ErrBrokerClosed = errors.New("messaging: broker is closed")

	// ErrNoResponder is returned when no responder is bound for the event type.
	ErrNoResponder = errors.New("messaging: no responder bound for event type")

	// ErrRequestTimeout is returned when the reply did not arrive in time.
	ErrRequestTimeout = fmt.Errorf("messaging: request timed out: %w", shared.ErrTimeout)

	// ErrNotConnected is returned when the broker connection is unavailable.
	ErrNotConnected = fmt.Errorf("messaging: broker not connected: %w", shared.ErrServiceUnavailable)
)

// HandlerFunc processes one delivery and returns the serialized reply.
// The context carries the delivery's correlation id (see CorrelationID).
type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// Broker is the transport of the request/reply bridge.
type Broker interface {
	// Request sends a payload for the event type and blocks until the reply
	// arrives or ctx/timeout expires.
	Request(ctx context.Context, eventType integration.EventType, payload []byte) ([]byte, error)

	// Respond binds the handler as the responder for the event type.
	// Binding is idempotent and last-registration-wins: re-binding the same
	// event type replaces the previous responder.
	Respond(eventType integration.EventType, handler HandlerFunc) error

	// ConnectNotifications returns a channel that receives a signal every
	// time the broker (re)connects. Reconnects invalidate prior bindings;
	// subscribers must re-register.
	ConnectNotifications() <-chan struct{}

	// Close releases all resources.
	Close() error
}

// requestEnvelope frames a request on the wire.
type requestEnvelope struct {
	CorrelationID string          `json:"correlation_id"`
	EventType     string          `json:"event_type"`
	ReplyTo       string          `json:"reply_to"`
	SentAt        time.Time       `json:"sent_at"`
	Payload       json.RawMessage `json:"payload"`
}

// replyEnvelope frames a reply on the wire.
type replyEnvelope struct {
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CORRELATION ID
// ══════════════════════════════════════════════════════════════════════════════

type correlationKey struct{}

// WithCorrelationID returns a context carrying the delivery's correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID extracts the correlation id from the context, if present.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
