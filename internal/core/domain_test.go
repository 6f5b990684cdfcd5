package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Year() != 2024 || d.Month() != 2 || d.Day() != 29 {
		t.Fatalf("unexpected date %v", d)
	}
	if _, err := ParseDate("2023-02-29"); err == nil {
		t.Fatalf("expected error for non-leap Feb 29")
	}
	if _, err := ParseDate("not-a-date"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{"weekly", Weekly, false},
		{"bi-weekly", BiWeekly, false},
		{"biweekly", BiWeekly, false},
		{"Bi_Weekly", BiWeekly, false},
		{"monthly", Monthly, false},
		{"quarterly", Quarterly, false},
		{"semi-annual", SemiAnnual, false},
		{"semiannual", SemiAnnual, false},
		{"YEARLY", Yearly, false},
		{"daily", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFrequency) {
					t.Errorf("ParseFrequency(%q) error = %v, want ErrInvalidFrequency", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFrequency(%q) unexpected error %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFrequency(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in      string
		want    Currency
		wantErr bool
	}{
		{"CAD", CAD, false},
		{"usd", USD, false},
		{" eur ", EUR, false},
		{"GBP", GBP, false},
		{"JPY", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCurrency(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidCurrency) {
				t.Errorf("ParseCurrency(%q) error = %v, want ErrInvalidCurrency", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseCurrency(%q) unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseCurrency(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err != nil {
		t.Fatalf("zero price is allowed, got %v", err)
	}
	if err := (Money{Cents: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestSubscriptionValidate(t *testing.T) {
	good := Subscription{
		Name:        "Netflix",
		Price:       Money{Cents: 1599},
		Currency:    CAD,
		Frequency:   Monthly,
		RenewalDate: NewDate(2025, 3, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Subscription{
		{Name: "", Price: Money{Cents: 1}, Currency: CAD, Frequency: Monthly, RenewalDate: NewDate(2025, 3, 1)},
		{Name: "a", Price: Money{Cents: -1}, Currency: CAD, Frequency: Monthly, RenewalDate: NewDate(2025, 3, 1)},
		{Name: "a", Price: Money{Cents: 1}, Currency: "JPY", Frequency: Monthly, RenewalDate: NewDate(2025, 3, 1)},
		{Name: "a", Price: Money{Cents: 1}, Currency: CAD, Frequency: "daily", RenewalDate: NewDate(2025, 3, 1)},
		{Name: "a", Price: Money{Cents: 1}, Currency: CAD, Frequency: Monthly},
	}
	for i, s := range bads {
		if err := s.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
