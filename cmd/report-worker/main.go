package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"messbook/internal/amqp"
	"messbook/internal/cache"
	"messbook/internal/cli"
	"messbook/internal/core"
	"messbook/internal/export"
	gsheet "messbook/internal/export/google"
	mem "messbook/internal/export/memory"
	applog "messbook/internal/log"
	"messbook/internal/services"
	"messbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting report worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitRepository(logger, cfg.DBPath)
	defer repo.Close()

	store := services.NewStore(repo)
	reports := services.NewReportService(store, core.SystemClock{})

	var writer export.ReportWriter
	switch cfg.ExportBackend {
	case "sheets":
		client, err := gsheet.New(context.Background(),
			cfg.GoogleSpreadsheetID, cfg.GoogleSummarySheet, cfg.GoogleMembersSheet)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Initialized Google Sheets export backend",
			"spreadsheet_id", cfg.GoogleSpreadsheetID)
	default:
		writer = mem.New()
		logger.Info("Initialized memory export backend")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(reports, writer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catch up on anything closed while the worker was down.
	if err := exportWorker.ExportLatest(ctx); err != nil {
		logger.Error("Startup export failed", applog.FieldError, err)
	}

	janitor := cache.NewJanitor()
	janitor.Register(reports.Cache())
	janitor.Start(cfg.CacheCleanupInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumePeriodClosed(gctx, func(msg *amqp.PeriodClosedMessage) error {
			return exportWorker.HandlePeriodClosed(gctx, msg)
		})
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down report worker")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		done := make(chan struct{})
		go func() {
			janitor.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		return gctx.Err()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Report worker stopped", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Report worker stopped gracefully")
}
