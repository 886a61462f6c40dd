package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/payments"
)

var (
	// ErrWebhookInvalid indicates a payload that failed signature verification or decoding.
	ErrWebhookInvalid = errors.New("webhook: invalid payload")
	// ErrWebhookNotConfigured indicates no signing secret is configured.
	ErrWebhookNotConfigured = errors.New("webhook: not configured")
)

// PaymentEventServiceDeps bundles collaborators required to construct a PaymentEventService.
type PaymentEventServiceDeps struct {
	WebhookSecret string
	// Publisher is optional; events are only logged without it.
	Publisher payments.EventPublisher
	Logger    func(ctx context.Context, event string, fields map[string]any)
	OnEvent   func(eventType string)
}

type paymentEventService struct {
	secret    string
	publisher payments.EventPublisher
	logger    func(ctx context.Context, event string, fields map[string]any)
	onEvent   func(string)
}

var _ PaymentEventService = (*paymentEventService)(nil)

// NewPaymentEventService constructs the webhook receiver.
func NewPaymentEventService(deps PaymentEventServiceDeps) PaymentEventService {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	onEvent := deps.OnEvent
	if onEvent == nil {
		onEvent = func(string) {}
	}
	return &paymentEventService{
		secret:    deps.WebhookSecret,
		publisher: deps.Publisher,
		logger:    logger,
		onEvent:   onEvent,
	}
}

// HandleStripeWebhook verifies and records one Stripe event. Unknown event
// types are acknowledged without side effects.
func (s *paymentEventService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (payments.Event, error) {
	event, handled, err := payments.ParseStripeWebhook(payload, signature, s.secret)
	switch {
	case errors.Is(err, payments.ErrWebhookNotConfigured):
		s.logger(ctx, "payments.webhook.not_configured", map[string]any{"error": err.Error()})
		return payments.Event{}, ErrWebhookNotConfigured
	case err != nil:
		s.logger(ctx, "payments.webhook.rejected", map[string]any{"error": err.Error()})
		return payments.Event{}, fmt.Errorf("%w: %v", ErrWebhookInvalid, err)
	}

	s.onEvent(event.Type)
	fields := map[string]any{
		"eventId":   event.ID,
		"eventType": event.Type,
		"handled":   handled,
	}
	if !handled {
		s.logger(ctx, "payments.webhook.ignored", fields)
		return event, nil
	}

	fields["status"] = string(event.Status)
	fields["sessionId"] = event.SessionID
	fields["amountTotal"] = event.AmountTotal
	s.logger(ctx, "payments.webhook.received", fields)

	if s.publisher != nil {
		messageID, err := s.publisher.PublishPaymentEvent(ctx, event)
		if err != nil {
			// Returning the error makes Stripe redeliver the event.
			s.logger(ctx, "payments.webhook.publish_failed", map[string]any{"eventId": event.ID, "error": err.Error()})
			return payments.Event{}, fmt.Errorf("webhook: publish event: %w", err)
		}
		s.logger(ctx, "payments.webhook.published", map[string]any{"eventId": event.ID, "messageId": messageID})
	}
	return event, nil
}
