// Package main is the entry point of the enrollment service.
//
// The enrollment service owns the student and enrollment aggregates. It
// serves the enrollment HTTP API, answers cross-service requests from the
// identity and payment services over the Redis bridge, and runs the
// certificate issuance worker.
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
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/enrollhub/enrollment-hub/config"
	"github.com/enrollhub/enrollment-hub/internal/application/command"
	"github.com/enrollhub/enrollment-hub/internal/application/responder"
	"github.com/enrollhub/enrollment-hub/internal/infrastructure/catalog"
	"github.com/enrollhub/enrollment-hub/internal/infrastructure/certissuer"
	"github.com/enrollhub/enrollment-hub/internal/infrastructure/messaging"
	"github.com/enrollhub/enrollment-hub/internal/infrastructure/persistence/postgres"
	cache "github.com/enrollhub/enrollment-hub/internal/infrastructure/persistence/redis"
	httpserver "github.com/enrollhub/enrollment-hub/internal/interface/http"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Maintenance subcommands run against the database and exit without
	// starting the service.
	if len(os.Args) > 1 {
		if err := runMaintenance(ctx, os.Args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// runMaintenance dispatches the schema maintenance subcommands: migrate,
// migrate-status and migrate-rollback.
func runMaintenance(ctx context.Context, cmd string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	migrator := postgres.NewMigrator(dbConn)

	switch cmd {
	case "migrate":
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		fmt.Println("migrations completed")
		return nil

	case "migrate-rollback":
		if err := migrator.Rollback(ctx); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		fmt.Println("last migration rolled back")
		return nil

	case "migrate-status":
		status, err := migrator.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}
		for _, mig := range status {
			if mig.IsApplied {
				fmt.Printf("%4d  %-40s applied %s\n", mig.Version, mig.Name, mig.AppliedAt.Format(time.RFC3339))
			} else {
				fmt.Printf("%4d  %-40s pending\n", mig.Version, mig.Name)
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q (expected migrate, migrate-status or migrate-rollback)", cmd)
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
	log.Info("starting enrollment service",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("migrations completed")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (bridge transport + snapshot cache, one shared client)
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

	snapshotCache := cache.NewCourseSnapshotCache(
		cache.NewCacheWithClient(redisClient),
		cfg.Catalog.SnapshotTTL,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EXTERNAL CLIENTS
	// ─────────────────────────────────────────────────────────────────────────
	snapshots := catalog.NewClient(catalog.Config{
		BaseURL:    cfg.Catalog.BaseURL,
		Timeout:    cfg.Catalog.RequestTimeout,
		RetryCount: cfg.Catalog.MaxRetries,
	}, snapshotCache, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	uowFactory := postgres.NewUnitOfWorkFactory(dbConn)
	idGenerator := command.UUIDGenerator{}

	enrollStudent := command.NewEnrollStudentHandler(uowFactory, idGenerator)
	recordProgress := command.NewRecordLessonProgressHandler(uowFactory)
	completeCourse := command.NewCompleteCourseHandler(uowFactory, snapshots)
	requestCertificate := command.NewRequestCertificateHandler(uowFactory, snapshots, idGenerator)
	registerStudent := command.NewRegisterStudentHandler(uowFactory)
	confirmPayment := command.NewConfirmEnrollmentPaymentHandler(uowFactory)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. BRIDGE RESPONDERS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering bridge responders...")
	registry := messaging.NewRegistry(messaging.RegistryConfig{
		Broker:          broker,
		StartupAttempts: cfg.Broker.RegisterAttempts,
		StartupDelay:    cfg.Broker.RegisterDelay,
		Logger:          log,
	})

	studentRegistered := responder.NewStudentRegisteredResponder(registerStudent, log)
	registry.Register(studentRegistered.EventType(), studentRegistered.Handle)

	paymentConfirmed := responder.NewPaymentConfirmedResponder(confirmPayment, log)
	registry.Register(paymentConfirmed.EventType(), paymentConfirmed.Handle)

	if err := registry.Start(ctx); err != nil {
		// Not fatal: the reconnect watcher is already running and the next
		// broker connect notification re-registers the responders.
		log.Error("bridge responders not registered yet, waiting for broker reconnect", "error", err)
	} else {
		log.Info("bridge responders registered", "count", registry.Len())
	}
	defer func() {
		log.Info("stopping responder registry...")
		registry.Stop()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. CERTIFICATE ISSUER
	// ─────────────────────────────────────────────────────────────────────────
	var issuer *certissuer.Issuer
	if cfg.Issuer.Enabled {
		renderer, err := certissuer.NewFileRenderer(cfg.Issuer.StorageDir)
		if err != nil {
			return fmt.Errorf("failed to create certificate renderer: %w", err)
		}

		issuer = certissuer.NewIssuer(
			postgres.NewCertificateRepository(dbConn),
			renderer,
			log,
			certissuer.Config{
				Schedule:   cfg.Issuer.Schedule,
				BatchSize:  cfg.Issuer.BatchSize,
				RunTimeout: cfg.Issuer.RunTimeout,
			},
		)
		if err := issuer.Start(); err != nil {
			return fmt.Errorf("failed to start certificate issuer: %w", err)
		}
		log.Info("certificate issuer started", "schedule", cfg.Issuer.Schedule)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port

	httpServer := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		EnrollStudent:      enrollStudent,
		RecordProgress:     recordProgress,
		CompleteCourse:     completeCourse,
		RequestCertificate: requestCertificate,
		HealthChecker:      dbHealth{conn: dbConn},
		Logger:             log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("enrollment service is running", "http_address", httpServer.Address())

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
	if issuer != nil {
		log.Info("stopping certificate issuer...")
		issuer.Stop()
	}

	log.Info("shutdown completed")
	return nil
}

// dbHealth adapts the connection pool to the readiness check.
type dbHealth struct {
	conn *postgres.Connection
}

func (h dbHealth) Check(ctx context.Context) error {
	return h.conn.Ping(ctx)
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
