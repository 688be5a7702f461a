// Package cli holds the startup steps shared by the saifuu binaries.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"saifuu/internal/amqp"
	"saifuu/internal/config"
	applog "saifuu/internal/log"
	"saifuu/internal/services"
	"saifuu/internal/sheets"
	gsheet "saifuu/internal/sheets/google"
	"saifuu/internal/sheets/memory"
	"saifuu/internal/storage"
)

// ShutdownTimeout bounds how long a binary waits for in-flight work after a
// shutdown signal.
const ShutdownTimeout = 30 * time.Second

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Bootstrap loads .env, resolves and validates the configuration from v and
// installs the process logger for component.
func Bootstrap(v *viper.Viper, component string) (*config.Config, *applog.Logger, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := cfg.Logger(component)
	applog.SetDefault(logger)
	return cfg, logger, nil
}

// OpenRepository opens the SQLite database and applies pending migrations.
func OpenRepository(cfg *config.Config, logger *applog.Logger) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.SQLiteDBPath, err)
	}
	logger.Info("SQLite repository ready", "path", cfg.SQLiteDBPath)
	return repo, nil
}

// NewPublisher connects to the broker when AMQP is configured. Events are
// optional for the API, so a connection failure is logged and the returned
// publisher is nil. The close func is always safe to call.
func NewPublisher(cfg *config.Config, logger *applog.Logger) (services.EventPublisher, func()) {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled, transaction events will not be published")
		return nil, func() {}
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without events",
			applog.FieldError, err)
		return nil, func() {}
	}
	logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close failed", applog.FieldError, err)
		}
	}
}

// NewLedger returns the Google Sheets ledger when a spreadsheet is
// configured and an in-memory ledger otherwise.
func NewLedger(ctx context.Context, cfg *config.Config, logger *applog.Logger) (sheets.LedgerWriter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled, using in-memory ledger")
		return memory.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("init google sheets ledger: %w", err)
	}
	logger.Info("Google Sheets ledger ready",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client, nil
}

// RunEvery calls fn once immediately and then on every tick until ctx is
// done.
func RunEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// Fatal logs err and exits. Only for main packages.
func Fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg, applog.FieldError, err)
	os.Exit(1)
}
