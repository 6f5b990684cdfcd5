package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"abbo/internal/amqp"
	"abbo/internal/core"
	"abbo/internal/metrics"
	"abbo/internal/storage"
)

// SubscriptionExporter appends subscription rows to the backup sheet.
type SubscriptionExporter interface {
	AppendSubscription(ctx context.Context, sub core.Subscription) (rowRef string, err error)
}

// SyncWorker exports subscriptions from SQLite to the Google Sheets backup.
// It consumes AMQP messages for low latency and sweeps the pending-sync
// table as a backup in case messages are lost.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	exporter  SubscriptionExporter
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, exporter SubscriptionExporter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single subscription sync message from AMQP
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SubscriptionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	sub, err := w.storage.GetSubscription(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted between publish and consume. Nothing to export.
			slog.WarnContext(ctx, "Subscription gone before export, skipping",
				"id", msg.ID)
			return nil
		}
		return fmt.Errorf("get subscription from storage: %w", err)
	}

	return w.exportSubscription(ctx, sub, msg.Version)
}

// HandleDeleteMessage processes a single subscription delete message from AMQP.
// The backup sheet is append-only, so a delete only leaves a log trail; the
// local soft delete already removed the record from every read path.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.SubscriptionDeleteMessage) error {
	slog.InfoContext(ctx, "Subscription deleted locally, backup sheet keeps history",
		"id", msg.ID,
		"name", msg.Name,
		"timestamp", msg.Timestamp)
	return nil
}

// ProcessPendingSubscriptions exports any subscriptions that haven't been
// synced yet. This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingSubscriptions(ctx context.Context) error {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck verifies and exports any pending subscriptions at worker
// startup, using a larger batch to recover from downtime quickly.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncSubscriptions(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending subscriptions for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending subscriptions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending subscriptions on startup, processing",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, p := range pending {
		if err := w.exportPending(ctx, p); err != nil {
			slog.ErrorContext(ctx, "Failed to export subscription during startup",
				"id", p.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, batch int) error {
	pending, err := w.storage.GetPendingSyncSubscriptions(ctx, batch)
	if err != nil {
		return fmt.Errorf("get pending subscriptions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending subscriptions", "count", len(pending))

	for _, p := range pending {
		if err := w.exportPending(ctx, p); err != nil {
			slog.ErrorContext(ctx, "Failed to export subscription",
				"id", p.ID, "error", err)
			continue
		}
	}
	return nil
}

func (w *SyncWorker) exportPending(ctx context.Context, p storage.PendingSyncSubscription) error {
	sub, err := w.storage.GetSubscription(ctx, p.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get subscription: %w", err)
	}
	return w.exportSubscription(ctx, sub, p.Version)
}

// exportSubscription appends the row and marks the record synced at the
// exported version. A stale version leaves sync_status untouched so a
// newer edit gets exported again.
func (w *SyncWorker) exportSubscription(ctx context.Context, sub core.Subscription, version int64) error {
	ref, err := w.exporter.AppendSubscription(ctx, sub)
	if err != nil {
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.storage.MarkSubscriptionSynced(ctx, sub.ID, version); err != nil {
		// The row landed on the sheet; failing to flip the flag only
		// means a duplicate export later.
		slog.ErrorContext(ctx, "Failed to mark as synced",
			"id", sub.ID, "version", version, "error", err)
	}

	metrics.SubscriptionsExported.Inc()

	slog.InfoContext(ctx, "Successfully exported subscription",
		"id", sub.ID,
		"name", sub.Name,
		"version", version,
		"sheet_ref", ref)
	return nil
}
