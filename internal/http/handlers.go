package http

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"abbo/internal/core"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := struct {
		Today       string
		Frequencies []core.Frequency
		Currencies  []core.Currency
	}{
		Today:       time.Now().Format("2006-01-02"),
		Frequencies: core.Frequencies(),
		Currencies:  core.Currencies(),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type subscriptionRow struct {
	ID          int64
	Name        string
	IconURL     string
	Price       string
	Frequency   core.Frequency
	Monthly     string
	RenewalDate string
	IncludeTax  bool
	FreeTrial   bool
	Cancelled   bool
}

// handleSubscriptionList renders the subscription table partial.
func (s *Server) handleSubscriptionList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	items, err := s.getSubscriptions(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Subscription list error", "error", err)
		_, _ = w.Write([]byte(`<section id="subscription-list"><div class="placeholder">Errore caricando gli abbonamenti</div></section>`))
		return
	}

	data := struct {
		Rows        []subscriptionRow
		Frequencies []core.Frequency
	}{
		Frequencies: core.Frequencies(),
	}
	for _, sub := range items {
		data.Rows = append(data.Rows, subscriptionRow{
			ID:          sub.ID,
			Name:        sub.Name,
			IconURL:     sub.IconURL,
			Price:       formatPrice(sub.Currency, sub.Price.Cents),
			Frequency:   sub.Frequency,
			Monthly:     formatAmount(sub.Currency, core.MonthlyEquivalent(sub.Price, sub.Frequency, sub.IncludeTax)),
			RenewalDate: sub.RenewalDate.String(),
			IncludeTax:  sub.IncludeTax,
			FreeTrial:   sub.FreeTrial,
			Cancelled:   sub.Cancelled,
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="subscription-list"><div class="placeholder">Template non disponibile</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "subscription_list.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "subscription_list.html")
		_, _ = w.Write([]byte(`<section id="subscription-list"><div class="placeholder">Errore rendering lista</div></section>`))
	}
}

type summaryLine struct {
	Currency  core.Currency
	Total     string
	Active    string
	Cancelled string
}

// handleSummary renders the monthly spend summary partial.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	summary, err := s.getSummary(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary error", "error", err)
		_, _ = w.Write([]byte(`<section id="summary" class="summary"><div class="placeholder">Errore caricando il riepilogo</div></section>`))
		return
	}

	data := struct {
		Lines      []summaryLine
		FreeTrials int
		Records    int
	}{
		FreeTrials: summary.FreeTrials,
		Records:    summary.Records,
	}
	// Stable display order across renders.
	for _, currency := range core.Currencies() {
		total, ok := summary.Total[currency]
		if !ok {
			continue
		}
		data.Lines = append(data.Lines, summaryLine{
			Currency:  currency,
			Total:     formatAmount(currency, total),
			Active:    formatAmount(currency, summary.Active[currency]),
			Cancelled: formatAmount(currency, summary.Cancelled[currency]),
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="summary" class="summary"><div class="placeholder">Template non disponibile</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "summary.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "summary.html")
		_, _ = w.Write([]byte(`<section id="summary" class="summary"><div class="placeholder">Errore rendering riepilogo</div></section>`))
	}
}

// handleIconSearch resolves a favicon for the typed service name.
// Returns an empty body when no icon is found so the UI simply shows
// nothing.
func (s *Server) handleIconSearch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	name := sanitizeInput(r.URL.Query().Get("name"))
	if name == "" || s.icons == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	iconURL := s.icons.LookupIconURL(r.Context(), name)
	if iconURL == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	escaped := template.HTMLEscapeString(iconURL)
	_, _ = w.Write([]byte(`<img class="service-icon" src="` + escaped + `" alt="">` +
		`<input type="hidden" name="icon_url" value="` + escaped + `">`))
}
