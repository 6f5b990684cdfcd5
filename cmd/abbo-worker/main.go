package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"abbo/internal/amqp"
	"abbo/internal/config"
	"abbo/internal/export/google"
	applog "abbo/internal/log"
	"abbo/internal/storage"
	"abbo/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting abbo-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// SQLite repository holds the pending-sync queue
	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	// Google Sheets backup export (optional)
	var exporter *google.Client
	if cfg.GoogleSpreadsheetID != "" {
		exporter, err = google.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	// AMQP client for consuming sync messages
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var syncWorker *worker.SyncWorker
	if exporter != nil {
		syncWorker = worker.NewSyncWorker(sqliteRepo, exporter, cfg.SyncBatchSize)

		// On startup, export any pending subscriptions that might have been missed
		logger.Info("Performing startup sync check...")
		if err := syncWorker.StartupSyncCheck(ctx); err != nil {
			logger.Error("Failed startup sync check", "error", err)
			// Don't exit - continue with normal operation
		}
	} else {
		logger.Info("Skipping export operations - no Google Sheets client available")
	}

	if syncWorker != nil {
		go func() {
			if err := amqpClient.ConsumeMessages(ctx, syncWorker.HandleSyncMessage, syncWorker.HandleDeleteMessage); err != nil {
				if err != context.Canceled {
					logger.Error("Message consumption failed", "error", err)
				}
				cancel()
			}
		}()

		// Periodic sweep for any missed messages
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := syncWorker.ProcessPendingSubscriptions(ctx); err != nil {
						logger.Error("Periodic sync failed", "error", err)
					}
				}
			}
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no sync worker available")
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give in-flight exports a moment to finish
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
