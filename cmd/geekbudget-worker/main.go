package main

import (
	"context"
	"errors"
	"os"
	"time"

	"geekbudget/internal/amqp"
	"geekbudget/internal/cli"
	"geekbudget/internal/log"
	"geekbudget/internal/services"
	"geekbudget/internal/sheets"
	gsheet "geekbudget/internal/sheets/google"
	sheetsmem "geekbudget/internal/sheets/memory"
	"geekbudget/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(nil, log.ComponentWorker)
	cfg := cli.MustLoadConfig(logger)
	logger = cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting geekbudget-worker", log.FieldOperation, log.OpStartup)

	be, err := cli.OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	var exporter sheets.Exporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			MatrixSheet:        cfg.GoogleMatrixSheet,
			TablesSheet:        cfg.GoogleTablesSheet,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets client initialized", log.FieldSpreadsheetID, cfg.GoogleSpreadsheetID)
	} else {
		exporter = sheetsmem.New()
		logger.Info("Google Sheets disabled - exporting to memory")
	}

	// The worker reads the store directly and never publishes.
	svc := services.NewViewService(be.Store, nil, services.ViewServiceConfig{
		CacheSize:           cfg.ViewCacheSize,
		CacheTTL:            cfg.ViewCacheTTL,
		DefaultWindowMonths: cfg.DefaultWindowMonths,
		DefaultCurrency:     cfg.DefaultCurrency,
	}, logger)

	w := worker.NewExportWorker(svc, exporter, worker.ExportOptions{
		Interval:   cfg.ExportInterval,
		Months:     cfg.DefaultWindowMonths,
		CurrencyID: cfg.DefaultCurrency,
	}, logger)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - relying on periodic exports")
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(context.Context) {
		w.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if be.Cleanup != nil {
			if err := be.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	w.Start(ctx)

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeBudgetChanged(ctx, w.HandleBudgetChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err, log.FieldOperation, log.OpConsume)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully", "exports", w.Exports())
}
