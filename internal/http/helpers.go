package http

import (
	"strconv"
	"strings"

	"abbo/internal/core"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// formatAmount renders a monthly amount with its currency symbol
// (e.g. "$12.34", "€9.99").
func formatAmount(currency core.Currency, amount core.MonthlyAmount) string {
	return currency.Symbol() + amount.String()
}

// formatPrice renders a stored price in cents with its currency symbol.
func formatPrice(currency core.Currency, cents int64) string {
	return currency.Symbol() + core.FormatCents(cents)
}

// parseID parses a subscription id from a sanitized form value.
func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
