package core

import "fmt"

// TaxPercent is the flat surcharge applied when a subscription is
// marked as taxed. It is applied once, after frequency normalization.
const TaxPercent = 13

// Billing cycles per year for each frequency. The monthly-equivalent
// multiplier is cycles/12, kept as an exact rational so nothing is
// rounded before summation.
var cyclesPerYear = map[Frequency]int64{
	Weekly:     52,
	BiWeekly:   26,
	Monthly:    12,
	Quarterly:  4,
	SemiAnnual: 2,
	Yearly:     1,
}

// CyclesPerYear returns how many billing cycles the frequency produces
// per year. An unrecognized frequency deliberately behaves as monthly,
// matching the scheduler's fallback.
func (f Frequency) CyclesPerYear() int64 {
	if n, ok := cyclesPerYear[f]; ok {
		return n
	}
	return cyclesPerYear[Monthly]
}

// MonthlyAmount is an exact monthly-equivalent amount held in 1/1200ths
// of a cent, so that every cycles/12 multiplier and the TaxPercent
// surcharge (113/100) stay integral. Rounding to cents happens only at
// display time, never during summation.
type MonthlyAmount struct {
	units int64
}

const unitsPerCent = 1200

// Add returns the sum of two monthly amounts. Addition is exact.
func (a MonthlyAmount) Add(b MonthlyAmount) MonthlyAmount {
	return MonthlyAmount{units: a.units + b.units}
}

// IsZero reports whether the amount is exactly zero.
func (a MonthlyAmount) IsZero() bool {
	return a.units == 0
}

// Cents rounds the exact amount half-up to whole cents for display.
func (a MonthlyAmount) Cents() int64 {
	u := a.units
	if u < 0 {
		return -MonthlyAmount{units: -u}.Cents()
	}
	return (u + unitsPerCent/2) / unitsPerCent
}

// String renders the amount rounded to two decimals, e.g. "4.33".
func (a MonthlyAmount) String() string {
	return FormatCents(a.Cents())
}

// MonthlyEquivalent normalizes a price to its exact monthly cost for
// the given frequency, applying the tax surcharge when requested.
func MonthlyEquivalent(price Money, f Frequency, includeTax bool) MonthlyAmount {
	factor := int64(100)
	if includeTax {
		factor = 100 + TaxPercent
	}
	return MonthlyAmount{units: price.Cents * f.CyclesPerYear() * factor}
}

// Summary is the monthly-equivalent spend of a set of subscriptions,
// grouped by currency. Active and Cancelled partition Total by the
// Cancelled flag; amounts are never summed across currencies.
type Summary struct {
	Total      map[Currency]MonthlyAmount
	Active     map[Currency]MonthlyAmount
	Cancelled  map[Currency]MonthlyAmount
	FreeTrials int
	Records    int
}

// NewSummary returns an empty summary with initialized maps.
func NewSummary() Summary {
	return Summary{
		Total:     make(map[Currency]MonthlyAmount),
		Active:    make(map[Currency]MonthlyAmount),
		Cancelled: make(map[Currency]MonthlyAmount),
	}
}

// Aggregate reduces subscriptions into a per-currency monthly spend
// summary. Every record contributes to Total and Records regardless of
// its flags; Active/Cancelled split Total by the Cancelled flag and
// FreeTrials counts trial records independently of that split.
//
// The whole set is processed or none of it: a negative price or an
// unrecognized currency fails the call outright with no partial result.
// An unrecognized frequency aggregates as monthly, the same fallback
// the renewal scheduler applies.
func Aggregate(subs []Subscription) (Summary, error) {
	out := NewSummary()
	for _, s := range subs {
		if s.Price.Cents < 0 {
			return Summary{}, fmt.Errorf("subscription %q: %w", s.Name, ErrInvalidAmount)
		}
		if !s.Currency.IsValid() {
			return Summary{}, fmt.Errorf("subscription %q: %w: %s", s.Name, ErrInvalidCurrency, s.Currency)
		}

		amount := MonthlyEquivalent(s.Price, s.Frequency, s.IncludeTax)
		out.Total[s.Currency] = out.Total[s.Currency].Add(amount)
		if s.Cancelled {
			out.Cancelled[s.Currency] = out.Cancelled[s.Currency].Add(amount)
		} else {
			out.Active[s.Currency] = out.Active[s.Currency].Add(amount)
		}
		if s.FreeTrial {
			out.FreeTrials++
		}
		out.Records++
	}
	return out, nil
}
