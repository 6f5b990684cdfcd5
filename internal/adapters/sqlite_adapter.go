package adapters

import (
	"context"
	"errors"

	"abbo/internal/core"
	"abbo/internal/services"
	"abbo/internal/storage"
	"abbo/internal/store"
)

// SQLiteAdapter adapts SQLiteRepository and SubscriptionService to the store.*
// ports. This allows the HTTP handlers to work unchanged while using the
// SQLite + AMQP backend.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	service *services.SubscriptionService
}

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.SubscriptionService) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage: storage,
		service: service,
	}
}

// Create implements store.SubscriptionWriter
func (a *SQLiteAdapter) Create(ctx context.Context, sub core.Subscription) (int64, error) {
	return a.service.CreateSubscription(ctx, sub)
}

// Update implements store.SubscriptionUpdater
func (a *SQLiteAdapter) Update(ctx context.Context, sub core.Subscription) error {
	return mapNotFound(a.service.UpdateSubscription(ctx, sub))
}

// SetCancelled implements store.SubscriptionUpdater
func (a *SQLiteAdapter) SetCancelled(ctx context.Context, id int64, cancelled bool) error {
	return mapNotFound(a.service.SetCancelled(ctx, id, cancelled))
}

// Delete implements store.SubscriptionDeleter
func (a *SQLiteAdapter) Delete(ctx context.Context, id int64) error {
	return mapNotFound(a.service.DeleteSubscription(ctx, id))
}

// List implements store.SubscriptionLister
func (a *SQLiteAdapter) List(ctx context.Context) ([]core.Subscription, error) {
	return a.storage.ListSubscriptions(ctx)
}

// Get implements store.SubscriptionLister
func (a *SQLiteAdapter) Get(ctx context.Context, id int64) (core.Subscription, error) {
	sub, err := a.storage.GetSubscription(ctx, id)
	return sub, mapNotFound(err)
}

// mapNotFound translates the repository sentinel into the port sentinel
// so callers only depend on store.ErrNotFound.
func mapNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return store.ErrNotFound
	}
	return err
}
