package main

import (
	"context"
	"errors"
	"os"
	"time"

	"retromoney/internal/cli"
	"retromoney/internal/log"
	"retromoney/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting retromoney-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	// The worker only repairs derived state, so it publishes nothing.
	ledger := cli.NewLedger(logger, cfg, store, nil)

	var exporter worker.ReportExporter
	sheetsClient, err := cli.InitSheets(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	if sheetsClient != nil {
		exporter = sheetsClient
		logger.Info("Report export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleReportSheet)
	} else {
		logger.Info("Report export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	var source worker.EventSource
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
		source = amqpClient
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	w := worker.NewLedgerWorker(ledger.Budget, ledger.Accounts, exporter, logger)
	if err := w.Run(ctx, source, cfg.ResyncSchedule); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
