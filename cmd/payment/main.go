// Package main is the entry point of the payment service.
//
// The payment service settles charges against the external gateway and
// confirms the matching enrollment on the enrollment service over the Redis
// bridge. It holds no database of its own: the gateway is the system of
// record for settlements and the enrollment service for enrollment state.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/enrollhub/enrollment-hub/config"
	"github.com/enrollhub/enrollment-hub/internal/application/saga"
	"github.com/enrollhub/enrollment-hub/internal/infrastructure/gateway"
	"github.com/enrollhub/enrollment-hub/internal/infrastructure/messaging"
	httpserver "github.com/enrollhub/enrollment-hub/internal/interface/http"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting payment service",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. BRIDGE TRANSPORT
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis...")
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	defer redisClient.Close()

	broker, err := messaging.NewRedisBroker(messaging.RedisBrokerConfig{
		Client:              redisClient,
		RequestTimeout:      cfg.Broker.RequestTimeout,
		HealthCheckInterval: cfg.Broker.HealthCheckInterval,
		Logger:              log,
	})
	if err != nil {
		return fmt.Errorf("failed to create broker: %w", err)
	}
	defer func() {
		log.Info("closing broker...")
		_ = broker.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GATEWAY CLIENT
	// ─────────────────────────────────────────────────────────────────────────
	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:          cfg.Gateway.BaseURL,
		APIKey:           cfg.Gateway.APIKey,
		Timeout:          cfg.Gateway.RequestTimeout,
		FailureThreshold: cfg.Gateway.CircuitBreakerThreshold,
		OpenTimeout:      cfg.Gateway.CircuitBreakerTimeout,
	}, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	eventBus := messaging.NewInMemoryEventBus(log)
	defer func() {
		_ = eventBus.Close()
	}()

	paymentSaga := saga.NewPaymentSaga(gatewayClient, broker, eventBus, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port

	httpServer := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		Payment:       paymentSaga,
		HealthChecker: redisHealth{client: redisClient},
		Logger:        log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("payment service is running", "http_address", httpServer.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
	}

	log.Info("shutdown completed")
	return nil
}

// redisHealth adapts the Redis client to the readiness check. The bridge is
// the payment service's critical dependency.
type redisHealth struct {
	client *goredis.Client
}

func (h redisHealth) Check(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

// setupLogger configures structured logging.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Observability.LogLevel)}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
