package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"abbo/internal/core"
	"abbo/internal/store/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	srv := NewServer(":0", st, st, st, st, nil)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	return srv, st
}

func seedSubscription(t *testing.T, st *memory.Store) int64 {
	t.Helper()
	id, err := st.Create(context.Background(), core.Subscription{
		Name:        "Netflix",
		Price:       core.Money{Cents: 1599},
		Currency:    core.CAD,
		Frequency:   core.Monthly,
		RenewalDate: core.NewDate(2025, 6, 15),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return id
}

func postForm(srv *Server, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Nuovo abbonamento") {
		t.Fatalf("index body missing form heading")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestCreateSubscriptionValidationAndSuccess(t *testing.T) {
	srv, st := newTestServer(t)

	// Wrong method
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/subscriptions", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	// Invalid price
	rr = postForm(srv, "/subscriptions", "name=Netflix&price=abc&currency=CAD&frequency=monthly&renewal_date=2025-06-15")
	if rr.Code != 422 {
		t.Fatalf("expected 422 for bad price, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Importo non valido") {
		t.Fatalf("expected price error, got %s", rr.Body.String())
	}

	// Unknown currency
	rr = postForm(srv, "/subscriptions", "name=Netflix&price=15.99&currency=JPY&frequency=monthly&renewal_date=2025-06-15")
	if rr.Code != 422 {
		t.Fatalf("expected 422 for bad currency, got %d", rr.Code)
	}

	// Unknown frequency
	rr = postForm(srv, "/subscriptions", "name=Netflix&price=15.99&currency=CAD&frequency=daily&renewal_date=2025-06-15")
	if rr.Code != 422 {
		t.Fatalf("expected 422 for bad frequency, got %d", rr.Code)
	}

	// Missing name
	rr = postForm(srv, "/subscriptions", "price=15.99&currency=CAD&frequency=monthly&renewal_date=2025-06-15")
	if rr.Code != 422 {
		t.Fatalf("expected 422 for missing name, got %d", rr.Code)
	}

	// Success
	rr = postForm(srv, "/subscriptions", "name=Netflix&price=15.99&currency=CAD&frequency=monthly&renewal_date=2025-06-15&include_tax=on")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "success") {
		t.Fatalf("expected success in body: %s", rr.Body.String())
	}

	trigger := rr.Header().Get("HX-Trigger")
	var events map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trigger), &events); err != nil {
		t.Fatalf("HX-Trigger not valid JSON: %v", err)
	}
	for _, event := range []string{"subscription:created", "summary:refresh", "form:reset", "show-notification"} {
		if _, ok := events[event]; !ok {
			t.Errorf("HX-Trigger missing %s: %s", event, trigger)
		}
	}

	items, _ := st.List(context.Background())
	if len(items) != 1 {
		t.Fatalf("store has %d subscriptions, want 1", len(items))
	}
	if items[0].Price.Cents != 1599 {
		t.Errorf("stored price = %d cents, want 1599", items[0].Price.Cents)
	}
	if !items[0].IncludeTax {
		t.Error("include_tax flag not stored")
	}
}

func TestCreateSubscriptionWithoutDateAnchorsOnToday(t *testing.T) {
	srv, st := newTestServer(t)

	rr := postForm(srv, "/subscriptions", "name=Spotify&price=9.99&currency=EUR&frequency=monthly")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	items, _ := st.List(context.Background())
	if len(items) != 1 {
		t.Fatalf("store has %d subscriptions, want 1", len(items))
	}
	if items[0].RenewalDate.IsZero() {
		t.Error("renewal date should have been anchored")
	}
}

func TestUpdateSubscription(t *testing.T) {
	srv, st := newTestServer(t)
	id := seedSubscription(t, st)

	// Unknown id
	rr := postForm(srv, "/subscriptions/update", "id=999&name=Other")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rr.Code)
	}

	// Partial update keeps the other fields
	rr = postForm(srv, "/subscriptions/update", "id=1&price=18.99")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	sub, err := st.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sub.Price.Cents != 1899 {
		t.Errorf("price = %d cents, want 1899", sub.Price.Cents)
	}
	if sub.Name != "Netflix" {
		t.Errorf("name = %q, want Netflix", sub.Name)
	}
	if sub.RenewalDate.String() != "2025-06-15" {
		t.Errorf("renewal date = %s, want 2025-06-15", sub.RenewalDate)
	}
}

func TestUpdateSubscriptionFrequencyAdvancesAnchor(t *testing.T) {
	srv, st := newTestServer(t)
	id := seedSubscription(t, st)

	rr := postForm(srv, "/subscriptions/update", "id=1&frequency=yearly")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	sub, _ := st.Get(context.Background(), id)
	if sub.Frequency != core.Yearly {
		t.Errorf("frequency = %s, want yearly", sub.Frequency)
	}
	if sub.RenewalDate.String() != "2026-06-15" {
		t.Errorf("renewal date = %s, want 2026-06-15", sub.RenewalDate)
	}
}

func TestCancelSubscription(t *testing.T) {
	srv, st := newTestServer(t)
	id := seedSubscription(t, st)

	rr := postForm(srv, "/subscriptions/cancel", "id=1")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	sub, _ := st.Get(context.Background(), id)
	if !sub.Cancelled {
		t.Error("subscription should be cancelled")
	}
	if sub.RenewalDate.String() != "2025-06-15" {
		t.Errorf("cancellation must keep the renewal date, got %s", sub.RenewalDate)
	}

	// Reactivate
	rr = postForm(srv, "/subscriptions/cancel", "id=1&cancelled=false")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	sub, _ = st.Get(context.Background(), id)
	if sub.Cancelled {
		t.Error("subscription should be active again")
	}

	// Unknown id
	rr = postForm(srv, "/subscriptions/cancel", "id=999")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestDeleteSubscription(t *testing.T) {
	srv, st := newTestServer(t)
	seedSubscription(t, st)

	// JSON body via DELETE, like the HTMX client sends
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/subscriptions/delete", strings.NewReader(`{"id": "1"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	items, _ := st.List(context.Background())
	if len(items) != 0 {
		t.Fatalf("store has %d subscriptions after delete, want 0", len(items))
	}

	// Second delete is a 404
	rr = postForm(srv, "/subscriptions/delete", "id=1")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for repeated delete, got %d", rr.Code)
	}
}

func TestSubscriptionListPartial(t *testing.T) {
	srv, st := newTestServer(t)
	seedSubscription(t, st)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ui/subscription-list", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("list status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Netflix") {
		t.Errorf("list missing subscription name: %s", body)
	}
	if !strings.Contains(body, "$15.99") {
		t.Errorf("list missing formatted price: %s", body)
	}
	if !strings.Contains(body, "2025-06-15") {
		t.Errorf("list missing renewal date: %s", body)
	}
}

func TestSummaryPartial(t *testing.T) {
	srv, st := newTestServer(t)
	seedSubscription(t, st)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ui/summary", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("summary status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "CAD") {
		t.Errorf("summary missing currency line: %s", body)
	}
	if !strings.Contains(body, "$15.99") {
		t.Errorf("summary missing monthly total: %s", body)
	}
}

func TestSummaryCacheInvalidatedOnMutation(t *testing.T) {
	srv, st := newTestServer(t)
	seedSubscription(t, st)

	get := func() string {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ui/summary", nil)
		srv.Handler.ServeHTTP(rr, req)
		return rr.Body.String()
	}

	before := get()
	if !strings.Contains(before, "$15.99") {
		t.Fatalf("unexpected summary before mutation: %s", before)
	}

	rr := postForm(srv, "/subscriptions", "name=Disney&price=10.00&currency=CAD&frequency=monthly&renewal_date=2025-07-01")
	if rr.Code != 200 {
		t.Fatalf("create failed: %d", rr.Code)
	}

	after := get()
	if !strings.Contains(after, "$25.99") {
		t.Errorf("summary not refreshed after mutation: %s", after)
	}

	items, _ := st.List(context.Background())
	if len(items) != 2 {
		t.Fatalf("store has %d subscriptions, want 2", len(items))
	}
}

func TestSecurityHeadersSet(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy not set")
	}
}
