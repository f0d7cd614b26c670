package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/enrollhub/enrollment-hub/internal/integration"
	"github.com/enrollhub/enrollment-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONDER REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// Registry owns the set of responders of one process and keeps them bound to
// the broker across reconnects.
//
// Bindings are declared once with Register and applied with EnsureRegistered,
// which is idempotent and guarded by a mutex: overlapping reconnect
// notifications serialize instead of double-registering, and re-applying a
// binding is harmless because the broker replaces the previous one.
type Registry struct {
	broker Broker
	logger *slog.Logger

	// registerMu serializes EnsureRegistered across boot and reconnects.
	registerMu sync.Mutex

	mu       sync.RWMutex
	bindings map[integration.EventType]HandlerFunc

	startupAttempts int
	startupDelay    time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// RegistryConfig contains configuration for the Registry.
type RegistryConfig struct {
	// Broker is the transport to bind responders on.
	Broker Broker

	// StartupAttempts bounds registration retries at boot. Default: 10.
	StartupAttempts int

	// StartupDelay is the fixed delay between boot retries. Default: 3s.
	StartupDelay time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// NewRegistry creates a responder registry.
func NewRegistry(config RegistryConfig) *Registry {
	if config.StartupAttempts <= 0 {
		config.StartupAttempts = 10
	}
	if config.StartupDelay <= 0 {
		config.StartupDelay = 3 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Registry{
		broker:          config.Broker,
		logger:          config.Logger,
		bindings:        make(map[integration.EventType]HandlerFunc),
		startupAttempts: config.StartupAttempts,
		startupDelay:    config.StartupDelay,
	}
}

// Register declares a responder for an event type. Declarations are applied
// to the broker by Start/EnsureRegistered; declaring the same type twice
// keeps the last handler.
func (r *Registry) Register(eventType integration.EventType, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[eventType] = handler
}

// EnsureRegistered applies every declared binding to the broker.
// Safe to call concurrently and repeatedly.
func (r *Registry) EnsureRegistered(ctx context.Context) error {
	r.registerMu.Lock()
	defer r.registerMu.Unlock()

	r.mu.RLock()
	bindings := make(map[integration.EventType]HandlerFunc, len(r.bindings))
	for eventType, handler := range r.bindings {
		bindings[eventType] = handler
	}
	r.mu.RUnlock()

	for eventType, handler := range bindings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.broker.Respond(eventType, handler); err != nil {
			return fmt.Errorf("bind responder for %s: %w", eventType, err)
		}
	}
	return nil
}

// Start performs the initial registration with bounded retry and then watches
// connect notifications to re-register after reconnects.
//
// If the broker is unreachable for all startup attempts, Start returns the
// error but the watcher keeps running: the process stays up and a later
// connect notification triggers registration again.
func (r *Registry) Start(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.watchReconnects(watchCtx)

	err := retry.Do(ctx, r.EnsureRegistered,
		retry.WithMaxAttempts(r.startupAttempts),
		retry.WithFixedDelay(r.startupDelay),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			r.logger.Warn("responder registration failed, retrying",
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		}),
	)
	if err != nil {
		r.logger.Error("responder registration gave up, waiting for reconnect", "error", err)
		return err
	}

	r.logger.Info("responders registered", "count", r.Len())
	return nil
}

// watchReconnects re-applies bindings on every connect notification.
func (r *Registry) watchReconnects(ctx context.Context) {
	defer r.wg.Done()

	notifications := r.broker.ConnectNotifications()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-notifications:
			if !ok {
				return
			}
			if err := r.EnsureRegistered(ctx); err != nil {
				r.logger.Error("re-registration after reconnect failed", "error", err)
				continue
			}
			r.logger.Info("responders re-registered after reconnect", "count", r.Len())
		}
	}
}

// Len returns the number of declared bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// Stop terminates the reconnect watcher.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}
