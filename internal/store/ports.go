package store

import (
	"context"
	"errors"

	"abbo/internal/core"
)

// ErrNotFound is returned when a subscription does not exist.
var ErrNotFound = errors.New("subscription not found")

// Ports for outbound adapters.
type (
	SubscriptionWriter interface {
		Create(ctx context.Context, sub core.Subscription) (id int64, err error)
	}

	SubscriptionUpdater interface {
		Update(ctx context.Context, sub core.Subscription) error
		SetCancelled(ctx context.Context, id int64, cancelled bool) error
	}

	SubscriptionDeleter interface {
		Delete(ctx context.Context, id int64) error
	}

	// SubscriptionLister returns stored subscriptions, newest first.
	SubscriptionLister interface {
		List(ctx context.Context) ([]core.Subscription, error)
		Get(ctx context.Context, id int64) (core.Subscription, error)
	}
)
