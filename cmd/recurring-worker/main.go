package main

import (
	"context"
	"time"

	"github.com/spf13/viper"

	"saifuu/internal/cli"
	"saifuu/internal/core"
	applog "saifuu/internal/log"
	"saifuu/internal/services"
)

func main() {
	cfg, logger, err := cli.Bootstrap(viper.New(), applog.ComponentProcessor)
	if err != nil {
		cli.Fatal(applog.New(applog.DefaultConfig()), "Configuration validation failed", err)
	}
	logger.Info("Starting recurring-worker", applog.FieldOperation, applog.OpStartup)

	repo, err := cli.OpenRepository(cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize SQLite repository", err)
	}
	defer repo.Close()

	// Generated transactions reach the ledger through saifuu-worker.
	publisher, closePublisher := cli.NewPublisher(cfg, logger)
	defer closePublisher()

	processor := services.NewSubscriptionProcessor(repo, publisher)
	logger.Info("Subscription processor configured",
		"interval", cfg.RecurringInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		cli.RunEvery(ctx, cfg.RecurringInterval, func(ctx context.Context) {
			now := time.Now().UTC()
			count, err := processor.ProcessDue(ctx, core.DateOf(now))
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("Subscription processing failed", applog.FieldError, err)
				}
				return
			}
			logger.Info("Subscription processing complete",
				"transactions_created", count,
				"next_check", now.Add(cfg.RecurringInterval).Format("15:04:05"))
		})
	}()

	<-ctx.Done()
	logger.Info("Shutting down recurring-worker", applog.FieldOperation, applog.OpShutdown)

	select {
	case <-done:
		logger.Info("Recurring-worker shutdown complete")
	case <-time.After(cli.ShutdownTimeout):
		logger.Warn("Shutdown timeout reached")
	}
}
