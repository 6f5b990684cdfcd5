package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"abbo/internal/core"
	"abbo/internal/store"
)

func sample(name string) core.Subscription {
	return core.Subscription{
		Name:        name,
		Price:       core.Money{Cents: 1299},
		Currency:    core.CAD,
		Frequency:   core.Monthly,
		RenewalDate: core.NewDate(2025, 4, 1),
	}
}

func TestStoreCRUD(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.Create(ctx, sample("Netflix"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Netflix" {
		t.Errorf("Name = %q", got.Name)
	}

	got.Price = core.Money{Cents: 1599}
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	updated, _ := s.Get(ctx, id)
	if updated.Price.Cents != 1599 {
		t.Errorf("Price = %d, want 1599", updated.Price.Cents)
	}

	if err := s.SetCancelled(ctx, id, true); err != nil {
		t.Fatalf("SetCancelled: %v", err)
	}
	cancelled, _ := s.Get(ctx, id)
	if !cancelled.Cancelled {
		t.Errorf("expected cancelled")
	}

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestStoreNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Get(ctx, 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, sample("X")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update = %v, want ErrNotFound", err)
	}
	if err := s.SetCancelled(ctx, 99, true); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SetCancelled = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete = %v, want ErrNotFound", err)
	}
}

func TestStoreCreateRejectsInvalid(t *testing.T) {
	s := New()

	bad := sample("Bad")
	bad.Price = core.Money{Cents: -1}
	if _, err := s.Create(context.Background(), bad); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("Create = %v, want ErrInvalidAmount", err)
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, name := range []string{"First", "Second", "Third"} {
		if _, err := s.Create(ctx, sample(name)); err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	if list[0].Name != "Third" || list[2].Name != "First" {
		t.Errorf("order = %q, %q, %q", list[0].Name, list[1].Name, list[2].Name)
	}
}

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	seed := `[
		{"name": "Netflix", "price_cents": 1599, "currency": "CAD", "frequency": "monthly", "renewal_date": "2025-04-01"},
		{"name": "Broken", "price_cents": 100, "currency": "XXX", "frequency": "monthly", "renewal_date": "2025-04-01"},
		{"name": "Domain", "price_cents": 1500, "currency": "USD", "frequency": "yearly", "renewal_date": "2025-09-12", "include_tax": true}
	]`
	if err := os.WriteFile(filepath.Join(dir, "seed_subscriptions.json"), []byte(seed), 0644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	s := NewFromFiles(dir)
	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	// The unknown-currency record is skipped.
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
}

func TestNewFromFilesMissingSeed(t *testing.T) {
	s := NewFromFiles(t.TempDir())
	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len = %d, want 0", len(list))
	}
}
