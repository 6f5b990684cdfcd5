package http

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"abbo/internal/core"
	"abbo/internal/metrics"
	"abbo/internal/services"
	"abbo/internal/store"
)

// draftFieldOrder fixes the order in which submitted form fields are
// folded into the draft. The renewal date comes after the frequency so
// an explicit date always wins over the frequency-derived one.
var draftFieldOrder = []string{
	services.FieldName,
	services.FieldPrice,
	services.FieldCurrency,
	services.FieldFrequency,
	services.FieldIncludeTax,
	services.FieldFreeTrial,
	services.FieldCancelled,
	services.FieldRenewalDate,
	services.FieldIconURL,
}

// applyFormChanges folds the submitted fields over the draft through the
// reducer. Only fields present in the form are applied.
func applyFormChanges(draft core.Subscription, form url.Values) (core.Subscription, string, error) {
	for _, field := range draftFieldOrder {
		if !form.Has(field) {
			continue
		}
		next, err := services.ReduceDraft(draft, services.FieldChange{
			Field: field,
			Value: sanitizeInput(form.Get(field)),
		})
		if err != nil {
			return draft, field, err
		}
		draft = next
	}
	return draft, "", nil
}

// fieldErrorMessage maps a rejected field to the user-facing message.
func fieldErrorMessage(field string) string {
	switch field {
	case services.FieldName:
		return "Nome non valido"
	case services.FieldPrice:
		return "Importo non valido"
	case services.FieldCurrency:
		return "Valuta non valida"
	case services.FieldFrequency:
		return "Frequenza non valida"
	case services.FieldRenewalDate:
		return "Data di rinnovo non valida"
	default:
		return "Dati non validi"
	}
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "method", r.Method, "url", r.URL.Path)
		resp.Write(w)
		return
	}

	draft, field, err := applyFormChanges(core.Subscription{}, r.Form)
	if err != nil {
		slog.WarnContext(r.Context(), "Subscription draft rejected",
			"field", field, "error", err)
		UnprocessableEntityError(fieldErrorMessage(field)).Write(w)
		return
	}
	if draft.Name == "" {
		UnprocessableEntityError("Nome mancante").Write(w)
		return
	}

	id, err := s.writer.Create(r.Context(), draft)
	if err != nil {
		if isValidationError(err) {
			slog.WarnContext(r.Context(), "Subscription validation failed", "error", err)
			UnprocessableEntityError("Dati non validi").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to save subscription",
			"error", err,
			"subscription_name", draft.Name,
			"price_cents", draft.Price.Cents,
			"currency", draft.Currency,
			"frequency", draft.Frequency)
		InternalServerError("Errore nel salvataggio").Write(w)
		return
	}

	metrics.SubscriptionsCreated.Inc()
	s.invalidate()

	slog.InfoContext(r.Context(), "Subscription created",
		"id", id,
		"subscription_name", draft.Name,
		"price_cents", draft.Price.Cents,
		"currency", draft.Currency,
		"frequency", draft.Frequency)

	successMsg := fmt.Sprintf("Abbonamento registrato: %s", template.HTMLEscapeString(draft.Name))

	NewHTMXResponse().
		TriggerSubscriptionCreated(id).
		TriggerSummaryRefresh().
		TriggerFormReset().
		TriggerSuccessNotification(successMsg).
		BodyHTML(`<div class="success">` + successMsg + `</div>`).
		Write(w)
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id, ok := parseID(sanitizeInput(r.Form.Get("id")))
	if !ok {
		BadRequestError("ID abbonamento mancante").Write(w)
		return
	}

	existing, err := s.lister.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFoundError("Abbonamento non trovato").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to load subscription", "id", id, "error", err)
		InternalServerError("Errore nel caricamento").Write(w)
		return
	}

	draft, field, err := applyFormChanges(existing, r.Form)
	if err != nil {
		slog.WarnContext(r.Context(), "Subscription draft rejected",
			"id", id, "field", field, "error", err)
		UnprocessableEntityError(fieldErrorMessage(field)).Write(w)
		return
	}

	if err := s.updater.Update(r.Context(), draft); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFoundError("Abbonamento non trovato").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to update subscription", "id", id, "error", err)
		InternalServerError("Errore nel salvataggio").Write(w)
		return
	}

	s.invalidate()

	slog.InfoContext(r.Context(), "Subscription updated",
		"id", id,
		"subscription_name", draft.Name)

	NewHTMXResponse().
		TriggerSubscriptionUpdated(id).
		TriggerSummaryRefresh().
		TriggerSuccessNotification("Abbonamento aggiornato").
		Write(w)
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id, ok := parseID(sanitizeInput(r.Form.Get("id")))
	if !ok {
		BadRequestError("ID abbonamento mancante").Write(w)
		return
	}

	// Default is cancelling; "cancelled=false" reactivates.
	cancelled := true
	if v := sanitizeInput(r.Form.Get("cancelled")); v == "false" || v == "no" || v == "off" {
		cancelled = false
	}

	if err := s.updater.SetCancelled(r.Context(), id, cancelled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFoundError("Abbonamento non trovato").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to change cancellation state",
			"id", id, "cancelled", cancelled, "error", err)
		InternalServerError("Errore nel salvataggio").Write(w)
		return
	}

	s.invalidate()

	slog.InfoContext(r.Context(), "Subscription cancellation changed",
		"id", id, "cancelled", cancelled)

	msg := "Abbonamento riattivato"
	if cancelled {
		msg = "Abbonamento annullato"
	}

	NewHTMXResponse().
		TriggerSubscriptionUpdated(id).
		TriggerSummaryRefresh().
		TriggerSuccessNotification(msg).
		Write(w)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		slog.ErrorContext(r.Context(), "Parse body error", "error", err, "method", r.Method, "url", r.URL.Path)
		BadRequestError("Formato richiesta non valido").Write(w)
		return
	}

	id, ok := parseID(parser.Get("id"))
	if !ok {
		BadRequestError("ID abbonamento mancante").Write(w)
		return
	}

	if err := s.deleter.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFoundError("Abbonamento non trovato").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to delete subscription", "id", id, "error", err)
		InternalServerError("Errore nella cancellazione").Write(w)
		return
	}

	metrics.SubscriptionsDeleted.Inc()
	s.invalidate()

	slog.InfoContext(r.Context(), "Subscription deleted", "id", id)

	NewHTMXResponse().
		TriggerSubscriptionDeleted(id).
		TriggerSummaryRefresh().
		TriggerSuccessNotification("Abbonamento eliminato").
		Write(w)
}

// isValidationError reports whether the error stems from domain
// validation rather than storage.
func isValidationError(err error) bool {
	return errors.Is(err, core.ErrEmptyName) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidCurrency) ||
		errors.Is(err, core.ErrInvalidFrequency) ||
		errors.Is(err, core.ErrInvalidDate)
}
