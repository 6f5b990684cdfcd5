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
	applog "abbo/internal/log"
	"abbo/internal/services"
	"abbo/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentRenewal,
	})
	applog.SetDefault(logger)

	logger.Info("Starting renewal-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	// AMQP client so advanced renewals are re-exported by abbo-worker.
	// The processor works fine without it.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized - renewals will sync via abbo-worker")
		}
	} else {
		logger.Info("AMQP disabled - renewals will not sync to Google Sheets")
	}

	processor := services.NewRenewalProcessor(sqliteRepo, amqpClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Renewal processor configured",
		"interval", cfg.RenewalCheckInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.RenewalCheckInterval)
	defer ticker.Stop()

	// Run initial processing on startup
	logger.Info("Running initial renewal processing...")
	if count, err := processor.ProcessDueRenewals(ctx, time.Now()); err != nil {
		logger.Error("Initial processing failed", "error", err)
	} else {
		logger.Info("Initial processing complete", "renewals_advanced", count)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				logger.Info("Processing due renewals...")
				count, err := processor.ProcessDueRenewals(ctx, now)
				if err != nil {
					logger.Error("Periodic processing failed", "error", err)
				} else {
					logger.Info("Periodic processing complete",
						"renewals_advanced", count,
						"next_check", now.Add(cfg.RenewalCheckInterval).Format("15:04:05"))
				}
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Renewal worker shutdown complete")
}
