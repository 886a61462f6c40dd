package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/cart"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/httpx"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/observability"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

const maxCartRequestBody = 4 * 1024

// CartHandlers exposes the browser scoped cart. No session is required.
type CartHandlers struct {
	store cart.Store
	carts services.CartService
}

// NewCartHandlers constructs cart handlers persisting through store.
func NewCartHandlers(store cart.Store, carts services.CartService) *CartHandlers {
	return &CartHandlers{store: store, carts: carts}
}

// Routes registers the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{productId}", h.updateItem)
	r.Delete("/items/{productId}", h.removeItem)
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandlers) ready(ctx context.Context, w http.ResponseWriter) bool {
	if h.store == nil || h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *CartHandlers) load(w http.ResponseWriter, r *http.Request) (*cart.Cart, bool) {
	c, err := h.store.Load(r)
	if err != nil {
		observability.FromContext(r.Context()).Error("load cart", zap.Error(err))
		httpx.WriteError(r.Context(), w, httpx.NewError("cart_unavailable", "cart storage unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	return c, true
}

func (h *CartHandlers) saveAndRespond(w http.ResponseWriter, r *http.Request, c *cart.Cart, warning *cart.Warning) {
	ctx := r.Context()
	if err := h.store.Save(w, r, c); err != nil {
		if errors.Is(err, cart.ErrCartTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("cart_too_large", "cart has too many items", http.StatusRequestEntityTooLarge))
			return
		}
		observability.FromContext(ctx).Error("save cart", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart storage unavailable", http.StatusServiceUnavailable))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSONResponse(w, http.StatusOK, map[string]any{"cart": buildCartPayload(c, warning)})
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	if !h.ready(r.Context(), w) {
		return
	}
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSONResponse(w, http.StatusOK, map[string]any{"cart": buildCartPayload(c, nil)})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	var req addCartItemRequest
	if err := httpx.DecodeJSON(r, maxCartRequestBody, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "productId is required", http.StatusBadRequest))
		return
	}
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	warning, err := h.carts.AddItem(ctx, c, strings.TrimSpace(req.ProductID), req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	h.saveAndRespond(w, r, c, warning)
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	var req updateCartItemRequest
	if err := httpx.DecodeJSON(r, maxCartRequestBody, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	warning, err := h.carts.UpdateItem(ctx, c, chi.URLParam(r, "productId"), *req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	h.saveAndRespond(w, r, c, warning)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.carts.RemoveItem(ctx, c, chi.URLParam(r, "productId")); err != nil {
		writeCartError(ctx, w, err)
		return
	}
	h.saveAndRespond(w, r, c, nil)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	if !h.ready(r.Context(), w) {
		return
	}
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	c.Clear()
	h.saveAndRespond(w, r, c, nil)
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", strings.TrimPrefix(err.Error(), services.ErrCartInvalidInput.Error()+": "), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "product is not in the cart", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog temporarily unavailable", http.StatusServiceUnavailable))
	default:
		writeInternalError(ctx, w, "cart_error", err)
	}
}
