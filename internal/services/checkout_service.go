package services

import (
	"context"
	"errors"
	"strings"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/cart"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/payments"
)

const freeShippingLabel = "Envío gratis"

var (
	// ErrCheckoutEmptyCart indicates checkout was requested for an empty cart.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutNotConfigured indicates the gateway key or public site URL is missing.
	ErrCheckoutNotConfigured = errors.New("checkout: payment gateway not configured")
	// ErrCheckoutGateway wraps a gateway rejection; the joined GatewayError carries its message.
	ErrCheckoutGateway = errors.New("checkout: gateway rejected the session")
)

// CheckoutCommand carries the cart and shopper context for a checkout.
type CheckoutCommand struct {
	Cart           *cart.Cart
	UserID         string
	CustomerEmail  string
	BrowserRef     string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// CheckoutServiceDeps bundles collaborators required to construct a CheckoutService.
type CheckoutServiceDeps struct {
	Gateway     payments.Gateway
	Currency    string
	PublicURL   string
	SuccessPath string
	CancelPath  string
	Logger      func(ctx context.Context, event string, fields map[string]any)
	// OnOutcome is invoked with "created", "empty", "not_configured" or "rejected".
	OnOutcome func(outcome string)
}

type checkoutService struct {
	gateway     payments.Gateway
	currency    string
	publicURL   string
	successPath string
	cancelPath  string
	logger      func(ctx context.Context, event string, fields map[string]any)
	onOutcome   func(string)
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService constructs a CheckoutService. Missing configuration is
// reported per request so the rest of the storefront keeps working.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("checkout service: gateway is required")
	}
	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "mxn"
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	onOutcome := deps.OnOutcome
	if onOutcome == nil {
		onOutcome = func(string) {}
	}
	return &checkoutService{
		gateway:     deps.Gateway,
		currency:    currency,
		publicURL:   strings.TrimRight(strings.TrimSpace(deps.PublicURL), "/"),
		successPath: deps.SuccessPath,
		cancelPath:  deps.CancelPath,
		logger:      logger,
		onOutcome:   onOutcome,
	}, nil
}

// BuildLineItems maps each cart line to a gateway line item priced in minor units.
func BuildLineItems(c *cart.Cart) []payments.LineItem {
	items := make([]payments.LineItem, 0, len(c.Lines))
	for _, line := range c.Lines {
		items = append(items, payments.LineItem{
			ProductID:  line.ProductID,
			Name:       line.Name,
			ImageURL:   line.Image,
			UnitAmount: line.Price.Shift(2).Round(0).IntPart(),
			Quantity:   int64(line.Quantity),
		})
	}
	return items
}

// CreateSession opens a hosted checkout for the cart with free shipping.
func (s *checkoutService) CreateSession(ctx context.Context, cmd CheckoutCommand) (payments.CheckoutSession, error) {
	if cmd.Cart == nil || cmd.Cart.Empty() {
		s.onOutcome("empty")
		return payments.CheckoutSession{}, ErrCheckoutEmptyCart
	}
	if s.publicURL == "" {
		s.onOutcome("not_configured")
		s.logger(ctx, "checkout.not_configured", map[string]any{"error": "public site url is empty"})
		return payments.CheckoutSession{}, ErrCheckoutNotConfigured
	}

	metadata := map[string]string{}
	if cmd.UserID != "" {
		metadata["userId"] = cmd.UserID
	}
	req := payments.CheckoutRequest{
		Currency:        s.currency,
		SuccessURL:      s.resolveURL(cmd.SuccessURL, s.successPath),
		CancelURL:       s.resolveURL(cmd.CancelURL, s.cancelPath),
		CustomerEmail:   cmd.CustomerEmail,
		ClientReference: cmd.BrowserRef,
		IdempotencyKey:  cmd.IdempotencyKey,
		Metadata:        metadata,
		Items:           BuildLineItems(cmd.Cart),
		ShippingLabel:   freeShippingLabel,
		ShippingAmount:  0,
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			s.onOutcome("not_configured")
			s.logger(ctx, "checkout.not_configured", map[string]any{"error": err.Error()})
			return payments.CheckoutSession{}, ErrCheckoutNotConfigured
		}
		s.onOutcome("rejected")
		s.logger(ctx, "checkout.gateway_rejected", map[string]any{"error": err.Error()})
		return payments.CheckoutSession{}, errors.Join(ErrCheckoutGateway, err)
	}

	s.onOutcome("created")
	s.logger(ctx, "checkout.session.created", map[string]any{
		"sessionId":  session.ID,
		"totalItems": cmd.Cart.TotalItems(),
		"total":      cmd.Cart.TotalPrice().StringFixed(2),
	})
	return session, nil
}

// resolveURL prefers an explicit same-site override, then the configured path.
func (s *checkoutService) resolveURL(override, path string) string {
	if o := strings.TrimSpace(override); o != "" {
		if strings.HasPrefix(o, "/") && !strings.HasPrefix(o, "//") {
			return s.publicURL + o
		}
		if strings.HasPrefix(o, s.publicURL+"/") {
			return o
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.publicURL + path
}
