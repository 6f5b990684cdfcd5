package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"abbo/internal/amqp"
	"abbo/internal/core"
	"abbo/internal/storage"
)

// SubscriptionService orchestrates subscription writes across SQLite and AMQP
type SubscriptionService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	now        func() time.Time
}

func NewSubscriptionService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *SubscriptionService {
	return &SubscriptionService{
		storage:    storage,
		amqpClient: amqpClient,
		now:        time.Now,
	}
}

// CreateSubscription saves a new subscription locally and publishes a sync
// message. When the caller supplies no renewal date the billing anchor is
// today: the first renewal is one cycle from the moment of creation.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, sub core.Subscription) (int64, error) {
	if sub.RenewalDate.IsZero() {
		now := s.now()
		today := core.NewDate(now.Year(), int(now.Month()), now.Day())
		sub.RenewalDate = AdvanceOnce(sub.Frequency, today)
	}
	if err := sub.Validate(); err != nil {
		return 0, fmt.Errorf("validate subscription: %w", err)
	}

	id, err := s.storage.CreateSubscription(ctx, sub)
	if err != nil {
		return 0, fmt.Errorf("save subscription: %w", err)
	}

	// Publish async sync message (non-blocking, version 1 for new record)
	if err := s.publishSyncMessage(ctx, id, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "error", err)
		// Don't fail the request - subscription is saved locally
	}

	return id, nil
}

// UpdateSubscription applies edits to an existing subscription. When the
// billing frequency changed and the caller left the renewal date alone,
// the next renewal is recomputed by advancing the record's current
// stored renewal date one cycle of the new frequency - the billing
// anchor is preserved, not reset to today. A renewal date the caller
// changed explicitly always wins over the recomputed one.
func (s *SubscriptionService) UpdateSubscription(ctx context.Context, sub core.Subscription) error {
	existing, err := s.storage.GetSubscription(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}

	if sub.Frequency != existing.Frequency &&
		(sub.RenewalDate.IsZero() || sub.RenewalDate.Equal(existing.RenewalDate.Time)) {
		sub.RenewalDate = AdvanceOnce(sub.Frequency, existing.RenewalDate)
	}
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("validate subscription: %w", err)
	}

	if err := s.storage.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	s.publishSyncForCurrentVersion(ctx, sub.ID)
	return nil
}

// SetCancelled flips the cancelled flag. The stored renewal date is kept
// as-is: for a cancelled subscription it reads as the end date.
func (s *SubscriptionService) SetCancelled(ctx context.Context, id int64, cancelled bool) error {
	sub, err := s.storage.GetSubscription(ctx, id)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}
	if sub.Cancelled == cancelled {
		return nil
	}

	sub.Cancelled = cancelled
	if err := s.storage.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	slog.InfoContext(ctx, "Subscription cancellation state changed",
		"id", id,
		"name", sub.Name,
		"cancelled", cancelled)

	s.publishSyncForCurrentVersion(ctx, id)
	return nil
}

// DeleteSubscription soft deletes locally and publishes a delete message
func (s *SubscriptionService) DeleteSubscription(ctx context.Context, id int64) error {
	sub, err := s.storage.GetSubscription(ctx, id)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}

	if err := s.storage.SoftDeleteSubscription(ctx, id); err != nil {
		return fmt.Errorf("soft delete subscription: %w", err)
	}

	if err := s.publishDeleteMessage(ctx, id, sub.Name); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"id", id, "error", err)
		// Don't fail the request - subscription is deleted locally
	}

	return nil
}

func (s *SubscriptionService) publishSyncForCurrentVersion(ctx context.Context, id int64) {
	version, err := s.storage.GetSubscriptionVersion(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read subscription version",
			"id", id, "error", err)
		return
	}
	if err := s.publishSyncMessage(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "version", version, "error", err)
	}
}

func (s *SubscriptionService) publishSyncMessage(ctx context.Context, id, version int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.amqpClient.PublishSubscriptionSync(ctx, id, version)
}

func (s *SubscriptionService) publishDeleteMessage(ctx context.Context, id int64, name string) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping delete message")
		return nil
	}
	return s.amqpClient.PublishSubscriptionDelete(ctx, id, name)
}

// Close closes both storage and AMQP connections
func (s *SubscriptionService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close subscription service: %v", errs)
	}

	return nil
}
