package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"abbo/internal/amqp"
	"abbo/internal/core"
	"abbo/internal/storage"
)

type fakeExporter struct {
	appended []core.Subscription
	err      error
}

func (f *fakeExporter) AppendSubscription(_ context.Context, sub core.Subscription) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.appended = append(f.appended, sub)
	return fmt.Sprintf("Subscriptions!A%d", len(f.appended)), nil
}

func newTestWorker(t *testing.T) (*SyncWorker, *storage.SQLiteRepository, *fakeExporter) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	exporter := &fakeExporter{}
	return NewSyncWorker(repo, exporter, 10), repo, exporter
}

func createSub(t *testing.T, repo *storage.SQLiteRepository, name string) int64 {
	t.Helper()
	id, err := repo.CreateSubscription(context.Background(), core.Subscription{
		Name:        name,
		Price:       core.Money{Cents: 1599},
		Currency:    core.CAD,
		Frequency:   core.Monthly,
		RenewalDate: core.NewDate(2025, 4, 1),
	})
	if err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	return id
}

func TestHandleSyncMessageExportsAndMarksSynced(t *testing.T) {
	w, repo, exporter := newTestWorker(t)
	ctx := context.Background()

	id := createSub(t, repo, "Netflix")
	msg := amqp.NewSubscriptionSyncMessage(id, 1)

	if err := w.HandleSyncMessage(ctx, msg); err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}
	if len(exporter.appended) != 1 || exporter.appended[0].Name != "Netflix" {
		t.Errorf("appended = %+v", exporter.appended)
	}

	pending, err := repo.GetPendingSyncSubscriptions(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingSyncSubscriptions: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0 after sync", len(pending))
	}
}

func TestHandleSyncMessageMissingSubscriptionIsNoop(t *testing.T) {
	w, _, exporter := newTestWorker(t)

	msg := amqp.NewSubscriptionSyncMessage(999, 1)
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}
	if len(exporter.appended) != 0 {
		t.Errorf("expected no export for missing subscription")
	}
}

func TestHandleSyncMessageExportFailureLeavesPending(t *testing.T) {
	w, repo, exporter := newTestWorker(t)
	ctx := context.Background()

	id := createSub(t, repo, "Spotify")
	exporter.err = errors.New("sheet unavailable")

	msg := amqp.NewSubscriptionSyncMessage(id, 1)
	if err := w.HandleSyncMessage(ctx, msg); err == nil {
		t.Fatalf("expected error from failed export")
	}

	pending, _ := repo.GetPendingSyncSubscriptions(ctx, 10)
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1 after failed export", len(pending))
	}
}

func TestStaleSyncMessageKeepsNewerVersionPending(t *testing.T) {
	w, repo, _ := newTestWorker(t)
	ctx := context.Background()

	id := createSub(t, repo, "Gym")

	// Edit bumps the version to 2 before the v1 message is consumed.
	sub, _ := repo.GetSubscription(ctx, id)
	sub.Price = core.Money{Cents: 5000}
	if err := repo.UpdateSubscription(ctx, sub); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}

	if err := w.HandleSyncMessage(ctx, amqp.NewSubscriptionSyncMessage(id, 1)); err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}

	// The stale version does not mark the newer edit as synced.
	pending, _ := repo.GetPendingSyncSubscriptions(ctx, 10)
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1 for unsynced v2", len(pending))
	}
}

func TestProcessPendingSubscriptions(t *testing.T) {
	w, repo, exporter := newTestWorker(t)
	ctx := context.Background()

	createSub(t, repo, "One")
	createSub(t, repo, "Two")

	if err := w.ProcessPendingSubscriptions(ctx); err != nil {
		t.Fatalf("ProcessPendingSubscriptions: %v", err)
	}
	if len(exporter.appended) != 2 {
		t.Errorf("appended = %d, want 2", len(exporter.appended))
	}

	pending, _ := repo.GetPendingSyncSubscriptions(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0 after sweep", len(pending))
	}

	// A second sweep has nothing to do.
	if err := w.ProcessPendingSubscriptions(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(exporter.appended) != 2 {
		t.Errorf("appended = %d after second sweep, want 2", len(exporter.appended))
	}
}

func TestStartupSyncCheck(t *testing.T) {
	w, repo, exporter := newTestWorker(t)
	ctx := context.Background()

	createSub(t, repo, "Backlog")

	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("StartupSyncCheck: %v", err)
	}
	if len(exporter.appended) != 1 {
		t.Errorf("appended = %d, want 1", len(exporter.appended))
	}
}

func TestHandleDeleteMessageIsNoop(t *testing.T) {
	w, _, _ := newTestWorker(t)

	msg := amqp.NewSubscriptionDeleteMessage(1, "Old service")
	if err := w.HandleDeleteMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleDeleteMessage: %v", err)
	}
}
