package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/viper"

	"saifuu/internal/amqp"
	"saifuu/internal/cli"
	applog "saifuu/internal/log"
	"saifuu/internal/worker"
)

func main() {
	cfg, logger, err := cli.Bootstrap(viper.New(), applog.ComponentWorker)
	if err != nil {
		cli.Fatal(applog.New(applog.DefaultConfig()), "Configuration validation failed", err)
	}
	logger.Info("Starting saifuu-worker", applog.FieldOperation, applog.OpStartup)

	if !cfg.AMQPEnabled() {
		cli.Fatal(logger, "AMQP_URL is required for saifuu-worker", errors.New("amqp disabled"))
	}

	repo, err := cli.OpenRepository(cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize SQLite repository", err)
	}
	defer repo.Close()

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	ledger, err := cli.NewLedger(ctx, cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize ledger", err)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer client.Close()

	syncWorker := worker.NewSyncWorker(repo, ledger)

	// Catch up on anything written while the worker was down.
	if n, err := syncWorker.Resync(ctx); err != nil {
		logger.Error("Startup resync failed", applog.FieldOperation, applog.OpSync, applog.FieldError, err)
	} else {
		logger.Info("Startup resync complete", applog.FieldOperation, applog.OpSync, "rows", n)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := client.Consume(ctx, syncWorker.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down saifuu-worker", applog.FieldOperation, applog.OpShutdown)

	select {
	case <-done:
		logger.Info("Worker shutdown complete")
	case <-time.After(cli.ShutdownTimeout):
		logger.Warn("Shutdown timeout reached")
	}
}
