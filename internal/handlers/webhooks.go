package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/httpx"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

// Stripe caps event payloads well below this.
const maxWebhookBodySize = 256 * 1024

// WebhookHandlers receives payment gateway notifications.
type WebhookHandlers struct {
	events services.PaymentEventService
}

// NewWebhookHandlers constructs webhook handlers.
func NewWebhookHandlers(events services.PaymentEventService) *WebhookHandlers {
	return &WebhookHandlers{events: events}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.stripe)
}

func (h *WebhookHandlers) stripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.events == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook receiver unavailable", http.StatusServiceUnavailable))
		return
	}
	payload, err := httpx.ReadBody(r, maxWebhookBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}

	event, err := h.events.HandleStripeWebhook(ctx, payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, services.ErrWebhookInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrWebhookNotConfigured):
		httpx.WriteError(ctx, w, httpx.NewError("webhook_not_configured", "webhook secret is not configured", http.StatusInternalServerError))
		return
	case err != nil:
		writeInternalError(ctx, w, "webhook_processing_failed", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true, "eventId": event.ID})
}
