package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Weekly     Frequency = "weekly"
	BiWeekly   Frequency = "bi-weekly"
	Monthly    Frequency = "monthly"
	Quarterly  Frequency = "quarterly"
	SemiAnnual Frequency = "semi-annual"
	Yearly     Frequency = "yearly"
)

const (
	CAD Currency = "CAD"
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
)

type (
	// Frequency is the billing recurrence interval of a subscription.
	Frequency string

	// Currency is one of the four supported currency codes. Amounts are
	// tracked per currency and never converted between currencies.
	Currency string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Subscription is a single recurring service as entered by the user.
	// Records are supplied whole for each computation; the core only
	// reads them and returns derived values.
	Subscription struct {
		ID          int64 // Database ID for operations
		Name        string
		Price       Money
		Currency    Currency
		Frequency   Frequency
		IncludeTax  bool // flat 13% surcharge on the monthly equivalent
		FreeTrial   bool
		Cancelled   bool
		RenewalDate Date // next renewal when active, end date when cancelled
		IconURL     string
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrEmptyName        = errors.New("empty subscription name")
)

// Frequencies lists the supported billing frequencies in display order.
func Frequencies() []Frequency {
	return []Frequency{Weekly, BiWeekly, Monthly, Quarterly, SemiAnnual, Yearly}
}

// Currencies lists the supported currency codes in display order.
func Currencies() []Currency {
	return []Currency{CAD, USD, EUR, GBP}
}

func (f Frequency) IsValid() bool {
	switch f {
	case Weekly, BiWeekly, Monthly, Quarterly, SemiAnnual, Yearly:
		return true
	default:
		return false
	}
}

// ParseFrequency normalizes user input into a Frequency. It accepts the
// canonical hyphenated spellings plus the compact forms used by the form
// layer ("biweekly", "semiannual"). Anything else is rejected here, at
// the boundary; the scheduler and aggregator keep their own monthly
// fallback for values that slip past it.
func ParseFrequency(s string) (Frequency, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, " ", "-")
	switch s {
	case "biweekly":
		return BiWeekly, nil
	case "semiannual":
		return SemiAnnual, nil
	}
	f := Frequency(s)
	if !f.IsValid() {
		return "", ErrInvalidFrequency
	}
	return f, nil
}

func (c Currency) IsValid() bool {
	switch c {
	case CAD, USD, EUR, GBP:
		return true
	default:
		return false
	}
}

// Symbol returns the display symbol for the currency.
func (c Currency) Symbol() string {
	switch c {
	case EUR:
		return "€"
	case GBP:
		return "£"
	default:
		return "$"
	}
}

// ParseCurrency normalizes user input into a Currency code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", ErrInvalidCurrency
	}
	return c, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day (UTC, midnight).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (s Subscription) Validate() error {
	if len(strings.TrimSpace(s.Name)) == 0 {
		return ErrEmptyName
	}
	if len(s.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := s.Price.Validate(); err != nil {
		return err
	}
	if !s.Currency.IsValid() {
		return ErrInvalidCurrency
	}
	if !s.Frequency.IsValid() {
		return ErrInvalidFrequency
	}
	if err := s.RenewalDate.Validate(); err != nil {
		return err
	}
	return nil
}
