package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"dualbudget/internal/buckets"
	"dualbudget/internal/cache"
	"dualbudget/internal/cli"
	apphttp "dualbudget/internal/http"
	applog "dualbudget/internal/log"
	"dualbudget/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(nil, applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg, applog.ComponentApp)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	peer, reconciler := cli.InitPeer(logger, cfg)

	// Assigned only when connected, so the service never sees a typed nil.
	var publisher services.Publisher
	if client := cli.ConnectAMQP(logger, cfg); client != nil {
		publisher = client
	}

	svc := services.NewBudgetService(repo, buckets.Default(), publisher).
		WithForecastWindow(cfg.ForecastWindowMonths)
	if peer != nil {
		svc.WithPeer(peer, reconciler)
	}

	cacheManager := cache.NewManager()
	cacheManager.Register(svc.SummaryCache())
	cacheManager.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.WithLogger(logger))
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close budget service", applog.FieldError, err)
		}
	})

	logger.Info("Starting dualbudget server",
		"port", cfg.Port,
		"database", cfg.SQLiteDBPath,
		"peer", peer != nil,
		"amqp", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
