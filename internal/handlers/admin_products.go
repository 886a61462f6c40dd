package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/auth"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/httpx"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

// Inline data URL images make product payloads large.
const maxProductBodySize = 6 << 20

// AdminProductHandlers exposes product CRUD to admin sessions.
type AdminProductHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewAdminProductHandlers constructs admin catalog handlers.
func NewAdminProductHandlers(authn *auth.Authenticator, catalog services.CatalogService) *AdminProductHandlers {
	return &AdminProductHandlers{authn: authn, catalog: catalog}
}

// Routes registers /products under the admin group.
func (h *AdminProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/products", func(rt chi.Router) {
		if h.authn != nil {
			rt.Use(h.authn.RequireSession(auth.RoleAdmin))
		} else {
			rt.Use(requireAdminIdentity)
		}
		rt.Get("/", h.listProducts)
		rt.Post("/", h.createProduct)
		rt.Get("/{productId}", h.getProduct)
		rt.Put("/{productId}", h.updateProduct)
		rt.Delete("/{productId}", h.deleteProduct)
	})
}

// requireAdminIdentity guards the group when no authenticator is wired, so
// the admin surface is never open by accident.
func requireAdminIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
			return
		}
		if !identity.IsAdmin() {
			httpx.WriteError(r.Context(), w, httpx.NewError("insufficient_role", "identity does not have required role", http.StatusForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AdminProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	filter, err := parseProductFilter(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	list, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	if list.Fallback {
		// Admins must not edit placeholders as if they were stored products.
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "product store unavailable", http.StatusServiceUnavailable))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSONResponse(w, http.StatusOK, productListResponse{Products: buildProductPayloads(list.Products)})
}

func (h *AdminProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productId"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSONResponse(w, http.StatusOK, map[string]any{"product": buildProductPayload(product)})
}

func (h *AdminProductHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	var cmd services.ProductCommand
	if err := httpx.DecodeJSON(r, maxProductBodySize, &cmd); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	product, err := h.catalog.CreateProduct(ctx, cmd)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/products/"+product.ID)
	writeJSONResponse(w, http.StatusCreated, map[string]any{"product": buildProductPayload(product)})
}

func (h *AdminProductHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	var cmd services.ProductCommand
	if err := httpx.DecodeJSON(r, maxProductBodySize, &cmd); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	product, err := h.catalog.UpdateProduct(ctx, productID, cmd)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"product": buildProductPayload(product)})
}

func (h *AdminProductHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	if err := h.catalog.DeleteProduct(ctx, chi.URLParam(r, "productId")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
