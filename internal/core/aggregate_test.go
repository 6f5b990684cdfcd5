package core

import (
	"errors"
	"testing"
)

func sub(name string, cents int64, cur Currency, f Frequency, tax, trial, cancelled bool) Subscription {
	return Subscription{
		Name:        name,
		Price:       Money{Cents: cents},
		Currency:    cur,
		Frequency:   f,
		IncludeTax:  tax,
		FreeTrial:   trial,
		Cancelled:   cancelled,
		RenewalDate: NewDate(2025, 6, 1),
	}
}

func TestAggregateEmpty(t *testing.T) {
	got, err := Aggregate(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Total) != 0 || len(got.Active) != 0 || len(got.Cancelled) != 0 {
		t.Errorf("expected empty maps, got %+v", got)
	}
	if got.FreeTrials != 0 || got.Records != 0 {
		t.Errorf("expected zero counters, got trials=%d records=%d", got.FreeTrials, got.Records)
	}
}

func TestAggregateMonthlyEquivalents(t *testing.T) {
	tests := []struct {
		name      string
		s         Subscription
		wantCents int64
	}{
		{"weekly 12.00 -> 52.00", sub("w", 1200, USD, Weekly, false, false, false), 5200},
		{"bi-weekly 12.00 -> 26.00", sub("b", 1200, USD, BiWeekly, false, false, false), 2600},
		{"monthly stays", sub("m", 1599, USD, Monthly, false, false, false), 1599},
		{"quarterly 30.00 -> 10.00", sub("q", 3000, USD, Quarterly, false, false, false), 1000},
		{"semi-annual 60.00 -> 10.00", sub("s", 6000, USD, SemiAnnual, false, false, false), 1000},
		{"yearly 10.00 -> 0.83", sub("y", 1000, USD, Yearly, false, false, false), 83},
		{"monthly 100.00 taxed -> 113.00", sub("t", 10000, CAD, Monthly, true, false, false), 11300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Aggregate([]Subscription{tt.s})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c := got.Total[tt.s.Currency].Cents(); c != tt.wantCents {
				t.Errorf("Total[%s] = %d cents, want %d", tt.s.Currency, c, tt.wantCents)
			}
		})
	}
}

func TestAggregateCancelledSplit(t *testing.T) {
	got, err := Aggregate([]Subscription{
		sub("cancelled taxed", 10000, CAD, Monthly, true, false, true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c := got.Total[CAD].Cents(); c != 11300 {
		t.Errorf("Total[CAD] = %d, want 11300", c)
	}
	if c := got.Cancelled[CAD].Cents(); c != 11300 {
		t.Errorf("Cancelled[CAD] = %d, want 11300", c)
	}
	if a, ok := got.Active[CAD]; ok && !a.IsZero() {
		t.Errorf("Active[CAD] = %v, want absent or zero", a)
	}
}

func TestAggregateTotalIsActivePlusCancelled(t *testing.T) {
	subs := []Subscription{
		sub("a", 1599, USD, Monthly, false, false, false),
		sub("b", 999, USD, Weekly, true, false, true),
		sub("c", 12000, USD, Yearly, false, true, false),
		sub("d", 4500, CAD, Quarterly, true, false, false),
		sub("e", 700, CAD, BiWeekly, false, true, true),
		sub("f", 20000, GBP, SemiAnnual, false, false, true),
	}
	got, err := Aggregate(subs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, cur := range Currencies() {
		want := got.Active[cur].Add(got.Cancelled[cur])
		if got.Total[cur] != want {
			t.Errorf("Total[%s] = %v, want Active+Cancelled = %v", cur, got.Total[cur], want)
		}
	}
	if got.Records != len(subs) {
		t.Errorf("Records = %d, want %d", got.Records, len(subs))
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	subs := []Subscription{
		sub("a", 1599, USD, Monthly, false, false, false),
		sub("b", 999, EUR, Weekly, true, false, true),
		sub("c", 12000, USD, Yearly, false, true, false),
		sub("d", 4500, CAD, Quarterly, true, false, false),
	}
	reversed := make([]Subscription, len(subs))
	for i, s := range subs {
		reversed[len(subs)-1-i] = s
	}

	a, err := Aggregate(subs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Aggregate(reversed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, cur := range Currencies() {
		if a.Total[cur] != b.Total[cur] || a.Active[cur] != b.Active[cur] || a.Cancelled[cur] != b.Cancelled[cur] {
			t.Errorf("aggregation differs for %s between orderings", cur)
		}
	}
	if a.FreeTrials != b.FreeTrials || a.Records != b.Records {
		t.Errorf("counters differ between orderings")
	}
}

func TestAggregateFreeTrialCount(t *testing.T) {
	got, err := Aggregate([]Subscription{
		sub("active trial", 0, USD, Monthly, false, true, false),
		sub("cancelled trial", 999, USD, Monthly, false, true, true),
		sub("no trial", 999, USD, Monthly, false, false, false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FreeTrials != 2 {
		t.Errorf("FreeTrials = %d, want 2 (cancelled trials still count)", got.FreeTrials)
	}
	if got.Records != 3 {
		t.Errorf("Records = %d, want 3", got.Records)
	}
}

func TestAggregateUnknownFrequencyFallsBackToMonthly(t *testing.T) {
	odd := sub("odd", 1000, USD, "fortnightly-ish", false, false, false)
	monthly := sub("monthly", 1000, USD, Monthly, false, false, false)

	a, err := Aggregate([]Subscription{odd})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Aggregate([]Subscription{monthly})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Total[USD] != b.Total[USD] {
		t.Errorf("unknown frequency aggregated as %v, want monthly %v", a.Total[USD], b.Total[USD])
	}
}

func TestAggregateRejectsBadRecords(t *testing.T) {
	_, err := Aggregate([]Subscription{sub("neg", -100, USD, Monthly, false, false, false)})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative price: error = %v, want ErrInvalidAmount", err)
	}

	_, err = Aggregate([]Subscription{sub("yen", 100, "JPY", Monthly, false, false, false)})
	if !errors.Is(err, ErrInvalidCurrency) {
		t.Errorf("unknown currency: error = %v, want ErrInvalidCurrency", err)
	}

	// First contract violation fails the whole set, nothing is partial.
	_, err = Aggregate([]Subscription{
		sub("fine", 100, USD, Monthly, false, false, false),
		sub("neg", -100, USD, Monthly, false, false, false),
	})
	if err == nil {
		t.Errorf("expected error for mixed valid/invalid input")
	}
}
