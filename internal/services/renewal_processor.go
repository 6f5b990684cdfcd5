package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"abbo/internal/amqp"
	"abbo/internal/core"
	"abbo/internal/metrics"
	"abbo/internal/storage"
)

// RenewalProcessor advances the renewal dates of active subscriptions
// that have come due. Each overdue record is advanced one billing cycle
// at a time until its renewal date is strictly in the future, so a
// subscription missed for several cycles catches up in one pass.
type RenewalProcessor struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

// NewRenewalProcessor creates a new renewal processor
func NewRenewalProcessor(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *RenewalProcessor {
	return &RenewalProcessor{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// ProcessDueRenewals advances every subscription whose renewal date is
// on or before now. Returns the number of subscriptions advanced.
func (p *RenewalProcessor) ProcessDueRenewals(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	today := core.NewDate(now.Year(), int(now.Month()), now.Day())
	due, err := p.storage.GetDueSubscriptions(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("get due subscriptions: %w", err)
	}

	slog.InfoContext(ctx, "Processing due renewals",
		"total_due", len(due),
		"processing_date", today.String())

	processedCount := 0

	for _, sub := range due {
		next := nextFutureRenewal(sub.Frequency, sub.RenewalDate, today)

		if err := p.storage.UpdateRenewalDate(ctx, sub.ID, next); err != nil {
			slog.ErrorContext(ctx, "Failed to update renewal date",
				"id", sub.ID,
				"name", sub.Name,
				"error", err)
			continue
		}

		metrics.RenewalsAdvanced.Inc()
		processedCount++

		slog.InfoContext(ctx, "Advanced subscription renewal",
			"id", sub.ID,
			"name", sub.Name,
			"frequency", sub.Frequency,
			"previous", sub.RenewalDate.String(),
			"next", next.String())

		p.publishSync(ctx, sub.ID)
	}

	slog.InfoContext(ctx, "Renewal processing complete",
		"processed", processedCount,
		"total_checked", len(due))

	return processedCount, nil
}

// nextFutureRenewal advances anchor one cycle at a time until the result
// is strictly after today. A single step suffices for a subscription
// that just came due; the loop only matters after downtime.
func nextFutureRenewal(frequency core.Frequency, anchor, today core.Date) core.Date {
	next := anchor
	for !next.After(today.Time) {
		next = AdvanceOnce(frequency, next)
	}
	return next
}

func (p *RenewalProcessor) publishSync(ctx context.Context, id int64) {
	if p.amqpClient == nil {
		return
	}
	version, err := p.storage.GetSubscriptionVersion(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read subscription version",
			"id", id, "error", err)
		return
	}
	if err := p.amqpClient.PublishSubscriptionSync(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "version", version, "error", err)
	}
}
