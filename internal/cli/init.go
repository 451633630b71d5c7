// Package cli provides common CLI initialization utilities.
// This package consolidates the initialization shared by cmd/dualbudget and
// cmd/dualbudget-sync.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dualbudget/internal/amqp"
	"dualbudget/internal/config"
	applog "dualbudget/internal/log"
	"dualbudget/internal/reconcile"
	"dualbudget/internal/storage"
)

// SetupLogger initializes structured logging from the configured level and
// format and installs it as the default logger.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Component = component
	if cfg != nil {
		if level, err := config.ParseLogLevel(cfg.LogLevel); err == nil {
			lc.Level = level
		}
		lc.Format = cfg.LogFormat
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the ledger store at dbPath and applies migrations.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.Repository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// InitPeer opens the peer store and the reconciler for the configured policy.
// Both are nil when no peer path is configured.
func InitPeer(logger *applog.Logger, cfg *config.Config) (*storage.Repository, *reconcile.Reconciler) {
	if cfg.PeerDBPath == "" {
		logger.Info("Peer store disabled - no PEER_DB_PATH provided")
		return nil, nil
	}
	policy, err := reconcile.ParsePolicy(cfg.SyncPolicy)
	if err != nil {
		logger.Error("Invalid sync policy", applog.FieldError, err)
		os.Exit(1)
	}
	peer := InitSQLite(logger, cfg.PeerDBPath)
	logger.Info("Peer store opened", "path", cfg.PeerDBPath, "policy", cfg.SyncPolicy)
	return peer, reconcile.New(policy)
}

// ConnectAMQP connects to the broker. It returns nil when AMQP is disabled or
// unreachable; callers then run without change notifications.
func ConnectAMQP(logger *applog.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to connect to AMQP, continuing without change notifications",
			applog.FieldError, err,
			"exchange", cfg.AMQPExchange)
		return nil
	}
	logger.Info("AMQP client connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that is cancelled on SIGINT or SIGTERM, and a channel that
// is closed once cleanup has run or the timeout has passed.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
