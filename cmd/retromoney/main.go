package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"retromoney/internal/cli"
	apphttp "retromoney/internal/http"
	"retromoney/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	ledger := cli.NewLedger(logger, cfg, store, cli.Publisher(amqpClient))

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Expenses:    ledger.Expenses,
		Budget:      ledger.Budget,
		Accounts:    ledger.Accounts,
		Investments: ledger.Investments,
		Rates:       ledger.Normalizer,
		Store:       store,
	}, logger, apphttp.Options{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:    cfg.TrustedProxies,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting retromoney server",
		"port", cfg.Port,
		"database", cfg.SQLiteDBPath,
		"events", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
