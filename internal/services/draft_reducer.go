package services

import (
	"fmt"
	"strconv"
	"strings"

	"abbo/internal/core"
)

// FieldChange is a single edit coming from the subscription form.
type FieldChange struct {
	Field string
	Value string
}

// Form field names accepted by ReduceDraft.
const (
	FieldName        = "name"
	FieldPrice       = "price"
	FieldCurrency    = "currency"
	FieldFrequency   = "frequency"
	FieldIncludeTax  = "include_tax"
	FieldFreeTrial   = "free_trial"
	FieldCancelled   = "cancelled"
	FieldRenewalDate = "renewal_date"
	FieldIconURL     = "icon_url"
)

// ReduceDraft applies one field change to a draft subscription and
// returns the new draft; the input is never mutated. Field values are
// validated at this boundary, so a draft built purely through the
// reducer only ever holds well-formed values.
//
// Changing the frequency also recomputes the renewal date by advancing
// the draft's current stored renewal date one cycle of the new
// frequency, so the existing billing anchor is preserved rather than
// reset to today.
func ReduceDraft(draft core.Subscription, change FieldChange) (core.Subscription, error) {
	next := draft
	value := strings.TrimSpace(change.Value)

	switch change.Field {
	case FieldName:
		if value == "" {
			return draft, core.ErrEmptyName
		}
		next.Name = value
	case FieldPrice:
		cents, err := core.ParseDecimalToCents(value)
		if err != nil {
			return draft, err
		}
		next.Price = core.Money{Cents: cents}
	case FieldCurrency:
		currency, err := core.ParseCurrency(value)
		if err != nil {
			return draft, err
		}
		next.Currency = currency
	case FieldFrequency:
		frequency, err := core.ParseFrequency(value)
		if err != nil {
			return draft, err
		}
		next.Frequency = frequency
		if !draft.RenewalDate.IsZero() {
			next.RenewalDate = AdvanceOnce(frequency, draft.RenewalDate)
		}
	case FieldIncludeTax, FieldFreeTrial, FieldCancelled:
		flag, err := parseFlag(value)
		if err != nil {
			return draft, err
		}
		switch change.Field {
		case FieldIncludeTax:
			next.IncludeTax = flag
		case FieldFreeTrial:
			next.FreeTrial = flag
		case FieldCancelled:
			next.Cancelled = flag
		}
	case FieldRenewalDate:
		date, err := core.ParseDate(value)
		if err != nil {
			return draft, err
		}
		next.RenewalDate = date
	case FieldIconURL:
		next.IconURL = value
	default:
		return draft, fmt.Errorf("unknown field: %s", change.Field)
	}

	return next, nil
}

// parseFlag accepts checkbox-style truthy values alongside strconv's.
func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, nil
	case "", "off", "no":
		return false, nil
	}
	return strconv.ParseBool(s)
}
