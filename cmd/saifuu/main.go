package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"saifuu/internal/cli"
	"saifuu/internal/config"
	"saifuu/internal/core"
	apphttp "saifuu/internal/http"
	applog "saifuu/internal/log"
	"saifuu/internal/middleware/ratelimit"
	"saifuu/internal/services"
	"saifuu/internal/storage"
)

var (
	cfgFile string
	v       = viper.New()

	cfg    *config.Config
	logger *applog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "saifuu",
	Short: "Household finance API over SQLite",
	Long: `saifuu tracks categories, transactions and subscriptions in a local
SQLite database and serves them as a JSON REST API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		}
		var err error
		cfg, logger, err = cli.Bootstrap(v, applog.ComponentApp)
		return err
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("down")
		if steps > 0 {
			if err := storage.RollbackMigrations(cfg.SQLiteDBPath, steps); err != nil {
				return err
			}
		} else if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
			return err
		}

		version, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
		if err != nil {
			return err
		}
		logger.Info("Migrations complete", "version", version, "dirty", dirty)
		return nil
	},
}

var processDueCmd = &cobra.Command{
	Use:   "process-due",
	Short: "Generate transactions for every subscription due today",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf := core.DateOf(time.Now().UTC())
		if raw, _ := cmd.Flags().GetString("date"); raw != "" {
			d, err := core.ParseDate(raw)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			asOf = d
		}

		repo, err := cli.OpenRepository(cfg, logger)
		if err != nil {
			return err
		}
		defer repo.Close()

		publisher, closePublisher := cli.NewPublisher(cfg, logger)
		defer closePublisher()

		n, err := services.NewSubscriptionProcessor(repo, publisher).ProcessDue(cmd.Context(), asOf)
		if err != nil {
			return err
		}
		logger.Info("Due subscriptions processed", "date", asOf.String(), "generated", n)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	bindFlag(rootCmd.PersistentFlags().Lookup("db"), config.KeySQLiteDBPath)
	bindFlag(rootCmd.PersistentFlags().Lookup("log-level"), config.KeyLogLevel)

	serveCmd.Flags().String("port", "", "HTTP listen port")
	serveCmd.Flags().Int("rate-limit", 0, "mutating requests per minute per client")
	serveCmd.Flags().Bool("process-due", false, "also generate due subscription transactions on RECURRING_INTERVAL")
	bindFlag(serveCmd.Flags().Lookup("port"), config.KeyPort)
	bindFlag(serveCmd.Flags().Lookup("rate-limit"), config.KeyRateLimitPerMinute)

	migrateCmd.Flags().Int("down", 0, "roll back this many migrations instead of applying")
	processDueCmd.Flags().String("date", "", "process as of this date (YYYY-MM-DD), default today UTC")

	rootCmd.AddCommand(serveCmd, migrateCmd, processDueCmd)
}

// bindFlag lets an explicitly set flag override the environment and the
// config file for key.
func bindFlag(f *pflag.Flag, key string) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, err := cli.OpenRepository(cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	publisher, closePublisher := cli.NewPublisher(cfg, logger)
	defer closePublisher()

	srv := apphttp.NewServer(apphttp.Options{
		Addr:        cfg.Addr(),
		Logger:      logger,
		DebugErrors: cfg.DebugErrors,
		RateLimit: ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			CleanupInterval:   5 * time.Minute,
		},
	}, apphttp.Stores{
		Categories:        repo,
		Transactions:      repo,
		TransactionWriter: services.NewTransactionService(repo, publisher),
		Subscriptions:     repo,
		DB:                repo,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting saifuu server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", applog.FieldOperation, applog.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if withDue, _ := cmd.Flags().GetBool("process-due"); withDue {
		processor := services.NewSubscriptionProcessor(repo, publisher)
		plog := logger.WithComponent(applog.ComponentProcessor)
		g.Go(func() error {
			cli.RunEvery(gctx, cfg.RecurringInterval, func(ctx context.Context) {
				asOf := core.DateOf(time.Now().UTC())
				n, err := processor.ProcessDue(ctx, asOf)
				if err != nil && ctx.Err() == nil {
					plog.Error("Subscription processing failed", applog.FieldError, err)
					return
				}
				plog.Info("Due subscriptions processed", "date", asOf.String(), "generated", n)
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func main() {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
