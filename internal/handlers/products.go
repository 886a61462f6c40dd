package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/httpx"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/validation"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

// CatalogFallbackHeader marks list responses served from the placeholder catalog.
const CatalogFallbackHeader = "X-Catalog-Fallback"

// ProductHandlers exposes the public catalog.
type ProductHandlers struct {
	catalog services.CatalogService
}

// NewProductHandlers constructs catalog handlers.
func NewProductHandlers(catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog}
}

// Routes registers the /products endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{productId}", h.getProduct)
	r.Get("/{productId}/notes.svg", h.notesChart)
}

type productListResponse struct {
	Products []productPayload `json:"products"`
	Fallback bool             `json:"fallback,omitempty"`
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
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
		w.Header().Set(CatalogFallbackHeader, "true")
		w.Header().Set("Cache-Control", "no-store")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=60")
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{
		Products: buildProductPayloads(list.Products),
		Fallback: list.Fallback,
	})
}

func parseProductFilter(r *http.Request) (services.ProductFilter, error) {
	q := r.URL.Query()
	filter := services.ProductFilter{Category: strings.TrimSpace(q.Get("category"))}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return services.ProductFilter{}, errors.New("limit must be a positive integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
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
	writeJSONResponse(w, http.StatusOK, map[string]any{"product": buildProductPayload(product)})
}

func (h *ProductHandlers) notesChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	svg, err := h.catalog.NotesChart(ctx, chi.URLParam(r, "productId"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(svg)
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		apiErr := httpx.NewError("invalid_request", "invalid product request", http.StatusBadRequest)
		var verr *validation.Error
		if errors.As(err, &verr) {
			apiErr = httpx.NewError("validation_failed", verr.Error(), http.StatusBadRequest).
				WithDetails(map[string]any{"fields": verr.Fields()})
		} else if errors.Is(err, services.ErrCatalogInvalidProductID) {
			apiErr = httpx.NewError("invalid_product_id", "product id is malformed", http.StatusBadRequest)
		}
		httpx.WriteError(ctx, w, apiErr)
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("product_conflict", "product was modified concurrently", http.StatusConflict))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog temporarily unavailable", http.StatusServiceUnavailable))
	default:
		writeInternalError(ctx, w, "catalog_error", err)
	}
}
