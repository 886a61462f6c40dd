package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"golang.org/x/sync/singleflight"
)

const providerStripe = "stripe"

// StripeLogger defines the logging contract for Stripe gateway operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configures the StripeGateway.
type StripeConfig struct {
	SecretKey string
	Backends  *stripe.Backends
	Logger    StripeLogger
	Clock     func() time.Time
	// ShippingCountries restricts address collection; empty disables it.
	ShippingCountries []string
}

// StripeGateway implements Gateway with Stripe Checkout. The API client is
// built on first use; concurrent cold-start callers share one construction.
type StripeGateway struct {
	key       string
	countries []string
	clock     func() time.Time
	logger    StripeLogger
	factory   func(key string) stripeSessionAPI

	group    singleflight.Group
	mu       sync.RWMutex
	sessions stripeSessionAPI
}

// NewStripeGateway returns a gateway; a missing secret key is reported lazily
// as ErrNotConfigured so the rest of the storefront still boots.
func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	backends := cfg.Backends
	return &StripeGateway{
		key:       strings.TrimSpace(cfg.SecretKey),
		countries: cfg.ShippingCountries,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
		factory: func(key string) stripeSessionAPI {
			return client.New(key, backends).CheckoutSessions
		},
	}
}

// Configured reports whether a secret key is present.
func (g *StripeGateway) Configured() bool {
	return g != nil && g.key != ""
}

func (g *StripeGateway) api() (stripeSessionAPI, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	g.mu.RLock()
	sessions := g.sessions
	g.mu.RUnlock()
	if sessions != nil {
		return sessions, nil
	}

	v, err, _ := g.group.Do("client", func() (any, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.sessions == nil {
			g.sessions = g.factory(g.key)
		}
		return g.sessions, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(stripeSessionAPI), nil
}

// CreateCheckoutSession opens a Stripe Checkout session in payment mode.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	sessions, err := g.api()
	if err != nil {
		return CheckoutSession{}, err
	}
	if len(req.Items) == 0 {
		return CheckoutSession{}, errors.New("stripe: at least one line item is required")
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if ref := strings.TrimSpace(req.ClientReference); ref != "" {
		params.ClientReferenceID = stripe.String(ref)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: params.Metadata}
	}
	if len(g.countries) > 0 {
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(g.countries),
		}
	}

	params.LineItems = make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		// Stripe only accepts hosted images.
		if strings.HasPrefix(item.ImageURL, "https://") || strings.HasPrefix(item.ImageURL, "http://") {
			product.Images = stripe.StringSlice([]string{item.ImageURL})
		}
		if item.ProductID != "" {
			product.Metadata = map[string]string{"productId": item.ProductID}
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: product,
			},
		})
	}

	if label := strings.TrimSpace(req.ShippingLabel); label != "" {
		params.ShippingOptions = []*stripe.CheckoutSessionShippingOptionParams{{
			ShippingRateData: &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
				Type:        stripe.String("fixed_amount"),
				DisplayName: stripe.String(label),
				FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
					Amount:   stripe.Int64(req.ShippingAmount),
					Currency: stripe.String(currency),
				},
			},
		}}
	}

	session, err := sessions.New(params)
	if err != nil {
		return CheckoutSession{}, translateStripeError(err)
	}

	g.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId": session.ID,
		"items":     len(req.Items),
		"currency":  currency,
	})

	expiresAt := g.clock().Add(24 * time.Hour)
	if session.ExpiresAt != 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return CheckoutSession{
		ID:          session.ID,
		Provider:    providerStripe,
		RedirectURL: session.URL,
		ExpiresAt:   expiresAt,
	}, nil
}

func translateStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &GatewayError{
			Provider: providerStripe,
			Code:     string(stripeErr.Code),
			Message:  stripeErr.Msg,
			Status:   stripeErr.HTTPStatusCode,
			Err:      err,
		}
	}
	return &GatewayError{Provider: providerStripe, Err: fmt.Errorf("create checkout session: %w", err)}
}
