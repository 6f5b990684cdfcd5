package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"abbo/internal/core"
	"abbo/internal/services"
	"abbo/internal/store"
)

// Store keeps subscriptions in memory. Used for local development and
// as the test double behind the HTTP handlers.
type Store struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]core.Subscription
}

func New() *Store {
	return &Store{
		nextID: 1,
		items:  make(map[int64]core.Subscription),
	}
}

// NewFromFiles seeds the store from seed_subscriptions.json in the
// given directory. A missing or malformed seed file yields an empty
// store.
func NewFromFiles(base string) *Store {
	s := New()
	for _, seed := range readSeed(filepath.Join(base, "seed_subscriptions.json")) {
		if err := seed.Validate(); err != nil {
			continue
		}
		seed.ID = s.nextID
		s.items[s.nextID] = seed
		s.nextID++
	}
	return s
}

// Create stores the subscription and returns its id. A missing renewal
// date is anchored one billing cycle after today, matching the SQLite
// backed service.
func (s *Store) Create(_ context.Context, sub core.Subscription) (int64, error) {
	if sub.RenewalDate.IsZero() {
		now := time.Now().UTC()
		today := core.NewDate(now.Year(), int(now.Month()), now.Day())
		sub.RenewalDate = services.AdvanceOnce(sub.Frequency, today)
	}
	if err := sub.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = s.nextID
	s.items[sub.ID] = sub
	s.nextID++
	return sub.ID, nil
}

// Update replaces the stored subscription with the same id.
func (s *Store) Update(_ context.Context, sub core.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[sub.ID]; !ok {
		return store.ErrNotFound
	}
	s.items[sub.ID] = sub
	return nil
}

// SetCancelled flips the cancelled flag of an existing subscription.
func (s *Store) SetCancelled(_ context.Context, id int64, cancelled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.items[id]
	if !ok {
		return store.ErrNotFound
	}
	sub.Cancelled = cancelled
	s.items[id] = sub
	return nil
}

// Delete removes the subscription.
func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// List returns all subscriptions, newest first.
func (s *Store) List(_ context.Context) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Subscription, 0, len(s.items))
	for _, sub := range s.items {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Get returns the subscription with the given id.
func (s *Store) Get(_ context.Context, id int64) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.items[id]
	if !ok {
		return core.Subscription{}, store.ErrNotFound
	}
	return sub, nil
}

type seedRecord struct {
	Name        string `json:"name"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	Frequency   string `json:"frequency"`
	IncludeTax  bool   `json:"include_tax"`
	FreeTrial   bool   `json:"free_trial"`
	Cancelled   bool   `json:"cancelled"`
	RenewalDate string `json:"renewal_date"`
	IconURL     string `json:"icon_url"`
}

func readSeed(path string) []core.Subscription {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var records []seedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}

	out := make([]core.Subscription, 0, len(records))
	for _, r := range records {
		currency, err := core.ParseCurrency(r.Currency)
		if err != nil {
			continue
		}
		frequency, err := core.ParseFrequency(r.Frequency)
		if err != nil {
			continue
		}
		date, err := core.ParseDate(r.RenewalDate)
		if err != nil {
			continue
		}
		out = append(out, core.Subscription{
			Name:        r.Name,
			Price:       core.Money{Cents: r.PriceCents},
			Currency:    currency,
			Frequency:   frequency,
			IncludeTax:  r.IncludeTax,
			FreeTrial:   r.FreeTrial,
			Cancelled:   r.Cancelled,
			RenewalDate: date,
			IconURL:     r.IconURL,
		})
	}
	return out
}
