package payments

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotConfigured is returned when the gateway lacks its credentials.
var ErrNotConfigured = errors.New("payments: gateway not configured")

// LineItem is a single checkout line priced in integer minor units.
type LineItem struct {
	ProductID   string
	Name        string
	Description string
	ImageURL    string
	UnitAmount  int64
	Quantity    int64
}

// CheckoutRequest captures the payload required to open a hosted checkout.
type CheckoutRequest struct {
	Currency        string
	SuccessURL      string
	CancelURL       string
	CustomerEmail   string
	ClientReference string
	IdempotencyKey  string
	Metadata        map[string]string
	Items           []LineItem
	// ShippingLabel names the single fixed-price shipping option; ShippingAmount is its cost.
	ShippingLabel  string
	ShippingAmount int64
}

// CheckoutSession is what the client needs to redirect the shopper.
type CheckoutSession struct {
	ID          string
	Provider    string
	RedirectURL string
	ExpiresAt   time.Time
}

// Gateway creates hosted checkout sessions.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

// GatewayError carries the gateway's own rejection message so callers can
// surface it unchanged.
type GatewayError struct {
	Provider string
	Code     string
	Message  string
	Status   int
	Err      error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return e.Provider + ": request rejected"
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
