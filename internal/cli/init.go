// Package cli provides common CLI initialization utilities shared by
// cmd/retromoney, cmd/retromoney-worker and cmd/retromoney-admin.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"retromoney/internal/amqp"
	"retromoney/internal/config"
	"retromoney/internal/currency"
	"retromoney/internal/log"
	"retromoney/internal/rates"
	"retromoney/internal/services"
	"retromoney/internal/sheets/google"
	"retromoney/internal/storage"
)

// SetupLogger initializes structured logging at LOG_LEVEL and sets it as
// the default logger.
func SetupLogger(component string) *log.Logger {
	level := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	logger := log.New(log.Config{
		Level:     level,
		Component: component,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	}).WithComponent(component)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// InitAMQP connects to the broker when AMQP_URL is set. A nil client means
// events are disabled; a connection failure is logged and tolerated.
func InitAMQP(logger *log.Logger, cfg *config.Config) *amqp.Client {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP_URL not set, ledger events disabled")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to connect to AMQP, continuing without events", log.FieldError, err)
		return nil
	}
	logger.Info("Connected to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// Publisher adapts an optional client so a nil client disables events.
func Publisher(c *amqp.Client) services.EventPublisher {
	if c == nil {
		return nil
	}
	return c
}

// InitSheets builds the report exporter when GOOGLE_SPREADSHEET_ID is set.
func InitSheets(ctx context.Context, logger *log.Logger, cfg *config.Config) (*google.Client, error) {
	if !cfg.SheetsEnabled() {
		return nil, nil
	}
	return google.New(ctx, google.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		Sheet:              cfg.GoogleReportSheet,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
}

// NewNormalizer wires the rate provider, optional cache and fallback rate.
func NewNormalizer(logger *log.Logger, cfg *config.Config) *currency.Normalizer {
	provider := rates.NewHTTPProvider(cfg.RateURL, rates.Paths{
		Buy:     cfg.RateBuyPath,
		Sell:    cfg.RateSellPath,
		Updated: cfg.RateUpdatedPath,
	}, cfg.RateTimeout)
	return currency.NewNormalizer(rates.NewCachedProvider(provider, cfg.RateCacheTTL), cfg.RateFallback, logger)
}

// Ledger bundles the services every binary builds on top of the store.
type Ledger struct {
	Normalizer  *currency.Normalizer
	Budget      *services.BudgetService
	Accounts    *services.AccountLedger
	Expenses    *services.ExpenseService
	Investments *services.InvestmentMirror
}

// NewLedger wires the services. publisher may be nil.
func NewLedger(logger *log.Logger, cfg *config.Config, store *storage.SQLiteRepository, publisher services.EventPublisher) *Ledger {
	normalizer := NewNormalizer(logger, cfg)
	reconciler := services.NewReconciler(logger)
	accounts := services.NewAccountLedger(store, normalizer, reconciler, publisher, logger)
	return &Ledger{
		Normalizer:  normalizer,
		Budget:      services.NewBudgetService(store, normalizer, reconciler, publisher, logger),
		Accounts:    accounts,
		Expenses:    services.NewExpenseService(store, normalizer, reconciler, accounts, publisher, logger),
		Investments: services.NewInvestmentMirror(store, reconciler, publisher, logger),
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
