// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for renewal date advancement.
// Each billing frequency (weekly, bi-weekly, monthly, quarterly,
// semi-annual, yearly) has its own strategy that encapsulates the date
// arithmetic for one billing cycle.

package services

import (
	"time"

	"abbo/internal/core"
)

// DateAdvancer is the strategy interface for advancing a renewal date by
// exactly one billing cycle. The result is always strictly later than
// the anchor.
type DateAdvancer interface {
	// NextRenewal returns the date one billing cycle after anchor.
	NextRenewal(anchor core.Date) core.Date
}

// WeeklyAdvancer implements DateAdvancer for weekly billing.
type WeeklyAdvancer struct{}

// NextRenewal adds 7 calendar days.
func (WeeklyAdvancer) NextRenewal(anchor core.Date) core.Date {
	return core.Date{Time: anchor.AddDate(0, 0, 7)}
}

// BiWeeklyAdvancer implements DateAdvancer for bi-weekly billing.
type BiWeeklyAdvancer struct{}

// NextRenewal adds 14 calendar days.
func (BiWeeklyAdvancer) NextRenewal(anchor core.Date) core.Date {
	return core.Date{Time: anchor.AddDate(0, 0, 14)}
}

// MonthlyAdvancer implements DateAdvancer for monthly billing.
type MonthlyAdvancer struct{}

// NextRenewal adds one calendar month, clamping to the last valid day
// of the target month (Jan 31 -> Feb 29 in a leap year, Feb 28 otherwise).
func (MonthlyAdvancer) NextRenewal(anchor core.Date) core.Date {
	return core.Date{Time: addMonthsClamped(anchor.Time, 1)}
}

// QuarterlyAdvancer implements DateAdvancer for quarterly billing.
type QuarterlyAdvancer struct{}

// NextRenewal adds three calendar months with day clamping.
func (QuarterlyAdvancer) NextRenewal(anchor core.Date) core.Date {
	return core.Date{Time: addMonthsClamped(anchor.Time, 3)}
}

// SemiAnnualAdvancer implements DateAdvancer for semi-annual billing.
type SemiAnnualAdvancer struct{}

// NextRenewal adds six calendar months with day clamping.
func (SemiAnnualAdvancer) NextRenewal(anchor core.Date) core.Date {
	return core.Date{Time: addMonthsClamped(anchor.Time, 6)}
}

// YearlyAdvancer implements DateAdvancer for yearly billing.
type YearlyAdvancer struct{}

// NextRenewal adds one calendar year with day clamping
// (Feb 29 -> Feb 28 in a non-leap target year).
func (YearlyAdvancer) NextRenewal(anchor core.Date) core.Date {
	return core.Date{Time: addMonthsClamped(anchor.Time, 12)}
}

// addMonthsClamped adds months to a date, clamping the day-of-month to
// the last valid day of the target month instead of letting the stdlib
// normalize into the following month. Renewal dates stay intuitive for
// billing: Jan 31 + 1 month is the end of February, not March 2.
func addMonthsClamped(t time.Time, months int) time.Time {
	firstOfTarget := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, t.Location())
}

// renewalStrategies maps billing frequencies to their advancers.
// This registry enables O(1) lookup and easy extension for new frequencies.
var renewalStrategies = map[core.Frequency]DateAdvancer{
	core.Weekly:     WeeklyAdvancer{},
	core.BiWeekly:   BiWeeklyAdvancer{},
	core.Monthly:    MonthlyAdvancer{},
	core.Quarterly:  QuarterlyAdvancer{},
	core.SemiAnnual: SemiAnnualAdvancer{},
	core.Yearly:     YearlyAdvancer{},
}

// GetDateAdvancer returns the advancer for a billing frequency. An
// unrecognized frequency gets the monthly advancer: the fallback is a
// deliberate, documented default rather than an error path, so stored
// records with a stray frequency value still renew sensibly.
func GetDateAdvancer(frequency core.Frequency) DateAdvancer {
	if advancer, ok := renewalStrategies[frequency]; ok {
		return advancer
	}
	return renewalStrategies[core.Monthly]
}

// RegisterDateAdvancer allows registering custom advancers for new
// frequencies without modifying the registry.
func RegisterDateAdvancer(frequency core.Frequency, advancer DateAdvancer) {
	renewalStrategies[frequency] = advancer
}

// AdvanceOnce advances anchor by one billing cycle of the given
// frequency. Pure function; the result is strictly after anchor.
func AdvanceOnce(frequency core.Frequency, anchor core.Date) core.Date {
	return GetDateAdvancer(frequency).NextRenewal(anchor)
}
