package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"dualbudget/internal/cli"
	applog "dualbudget/internal/log"
	"dualbudget/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(nil, applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg, applog.ComponentWorker)

	if cfg.PeerDBPath == "" {
		logger.Error("PEER_DB_PATH is required by the sync worker")
		os.Exit(1)
	}

	src := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer src.Close()
	peer, reconciler := cli.InitPeer(logger, cfg)
	defer peer.Close()

	wc := worker.DefaultConfig()
	wc.Interval = cfg.SyncInterval
	if cfg.DefaultProfileID != "" {
		wc.ProfileIDs = []string{cfg.DefaultProfileID}
	}
	syncWorker := worker.NewSyncWorker(src, peer, reconciler, wc)

	amqpClient := cli.ConnectAMQP(logger, cfg)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := syncWorker.Stop(ctx); err != nil {
			logger.Error("Sync worker stop failed", applog.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting dualbudget sync worker",
		"source", cfg.SQLiteDBPath,
		"peer", cfg.PeerDBPath,
		"interval", cfg.SyncInterval,
		"policy", cfg.SyncPolicy)
	if err := syncWorker.Start(ctx); err != nil {
		logger.Error("Failed to start sync worker", applog.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeChanges(gctx, syncWorker.HandleChange)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("Change consumption disabled, relying on periodic passes")
	}
	if err := g.Wait(); err != nil {
		if syncWorker.IsRunning() {
			logger.Error("Message consumption failed, continuing with periodic passes", applog.FieldError, err)
		} else {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
	}

	cli.WaitForShutdown(ctx, done)
	stats := syncWorker.Stats()
	logger.Info("Sync worker stopped",
		"passes", stats.Passes,
		"mirrored", stats.Mirrored,
		"failures", stats.Failures)
}
