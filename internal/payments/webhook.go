package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Status is the normalised outcome carried by a payment event.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

var (
	// ErrInvalidSignature is returned when a webhook payload fails verification.
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	// ErrWebhookNotConfigured is returned when no signing secret is set.
	ErrWebhookNotConfigured = errors.New("payments: webhook secret not configured")
)

// Event is the gateway-neutral view of an asynchronous payment notification.
type Event struct {
	ID              string            `json:"id"`
	Type            string            `json:"type"`
	Provider        string            `json:"provider"`
	Status          Status            `json:"status"`
	SessionID       string            `json:"sessionId,omitempty"`
	PaymentIntentID string            `json:"paymentIntentId,omitempty"`
	AmountTotal     int64             `json:"amountTotal,omitempty"`
	Currency        string            `json:"currency,omitempty"`
	CustomerEmail   string            `json:"customerEmail,omitempty"`
	ClientReference string            `json:"clientReference,omitempty"`
	FailureMessage  string            `json:"failureMessage,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	OccurredAt      time.Time         `json:"occurredAt"`
}

// EventPublisher fans payment events out to downstream consumers.
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event Event) (string, error)
}

// ParseStripeWebhook verifies the Stripe-Signature header and decodes the
// event. handled is false for event types the storefront does not act on.
func ParseStripeWebhook(payload []byte, signature, secret string) (event Event, handled bool, err error) {
	if strings.TrimSpace(secret) == "" {
		return Event{}, false, ErrWebhookNotConfigured
	}
	raw, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	event = Event{
		ID:         raw.ID,
		Type:       string(raw.Type),
		Provider:   providerStripe,
		OccurredAt: time.Unix(raw.Created, 0).UTC(),
	}
	if raw.Data == nil {
		return event, false, nil
	}

	switch raw.Type {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(raw.Data.Raw, &session); err != nil {
			return event, false, fmt.Errorf("payments: decode checkout session: %w", err)
		}
		applySession(&event, &session)
		switch raw.Type {
		case "checkout.session.async_payment_succeeded":
			event.Status = StatusSucceeded
		case "checkout.session.async_payment_failed":
			event.Status = StatusFailed
		default:
			event.Status = StatusPending
			if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
				session.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
				event.Status = StatusSucceeded
			}
		}
		return event, true, nil
	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(raw.Data.Raw, &intent); err != nil {
			return event, false, fmt.Errorf("payments: decode payment intent: %w", err)
		}
		event.Status = StatusFailed
		event.PaymentIntentID = intent.ID
		event.AmountTotal = intent.Amount
		event.Currency = strings.ToUpper(string(intent.Currency))
		event.CustomerEmail = intent.ReceiptEmail
		event.Metadata = intent.Metadata
		if intent.LastPaymentError != nil {
			event.FailureMessage = intent.LastPaymentError.Msg
		}
		return event, true, nil
	default:
		return event, false, nil
	}
}

func applySession(event *Event, session *stripe.CheckoutSession) {
	event.SessionID = session.ID
	if session.PaymentIntent != nil {
		event.PaymentIntentID = session.PaymentIntent.ID
	}
	event.AmountTotal = session.AmountTotal
	event.Currency = strings.ToUpper(string(session.Currency))
	event.ClientReference = session.ClientReferenceID
	event.Metadata = session.Metadata
	event.CustomerEmail = session.CustomerEmail
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		event.CustomerEmail = session.CustomerDetails.Email
	}
}
