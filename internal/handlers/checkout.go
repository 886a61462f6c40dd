package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/cart"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/payments"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/auth"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/httpx"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

const (
	maxCheckoutRequestBody = 8 * 1024
	idempotencyHeader      = "Idempotency-Key"
	maxIdempotencyKeyLen   = 255
)

// CheckoutHandlers turns the browser cart into a hosted payment session.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	store    cart.Store
	checkout services.CheckoutService
	replay   func(http.Handler) http.Handler
}

// CheckoutOption customises CheckoutHandlers.
type CheckoutOption func(*CheckoutHandlers)

// WithReplayGuard wraps session creation with mw, which runs after the
// session is resolved so it can scope keys per user.
func WithReplayGuard(mw func(http.Handler) http.Handler) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.replay = mw
	}
}

// NewCheckoutHandlers constructs checkout handlers. Sessions are optional:
// a signed-in shopper is attached to the payment, guests check out anonymously.
func NewCheckoutHandlers(authn *auth.Authenticator, store cart.Store, checkout services.CheckoutService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{authn: authn, store: store, checkout: checkout}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.Optional)
	}
	if h.replay != nil {
		group = group.With(h.replay)
	}
	group.Post("/session", h.createSession)
}

type checkoutSessionRequest struct {
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type checkoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	Provider  string `json:"provider"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

func (h *CheckoutHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil || h.store == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req checkoutSessionRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, maxCheckoutRequestBody, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
			httpx.WriteError(ctx, w, httpx.BodyError(err))
			return
		}
	}

	idemKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if len(idemKey) > maxIdempotencyKeyLen {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "Idempotency-Key is too long", http.StatusBadRequest))
		return
	}

	c, err := h.store.Load(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart storage unavailable", http.StatusServiceUnavailable))
		return
	}

	cmd := services.CheckoutCommand{
		Cart:           c,
		BrowserRef:     middleware.GetReqID(ctx),
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		IdempotencyKey: idemKey,
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		cmd.UserID = identity.UserID
		cmd.CustomerEmail = identity.Email
		cmd.BrowserRef = identity.UserID
	}

	session, err := h.checkout.CreateSession(ctx, cmd)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutSessionResponse{
		SessionID: session.ID,
		Provider:  session.Provider,
		URL:       session.RedirectURL,
		ExpiresAt: formatTime(session.ExpiresAt),
	})
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutNotConfigured):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_not_configured", "checkout is not configured", http.StatusInternalServerError))
	case errors.Is(err, services.ErrCheckoutGateway):
		message := "payment gateway rejected the request"
		var gwErr *payments.GatewayError
		if errors.As(err, &gwErr) && gwErr.Error() != "" {
			message = gwErr.Error()
		}
		apiErr := httpx.NewError("payment_gateway_error", message, http.StatusBadGateway)
		if gwErr != nil && gwErr.Code != "" {
			apiErr = apiErr.WithDetails(map[string]any{"gateway_code": gwErr.Code})
		}
		httpx.WriteError(ctx, w, apiErr)
	default:
		writeInternalError(ctx, w, "checkout_error", err)
	}
}
