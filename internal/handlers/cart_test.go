package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

func newCartRouter(t *testing.T, store *memoryCartStore) chi.Router {
	t.Helper()
	catalog := &stubCatalogService{
		getFunc: func(_ context.Context, id string) (services.Product, error) {
			switch id {
			case testProductID:
				return sampleProduct(), nil
			case "bad":
				return services.Product{}, services.ErrCatalogInvalidProductID
			default:
				return services.Product{}, services.ErrCatalogNotFound
			}
		},
	}
	carts, err := services.NewCartService(services.CartServiceDeps{Catalog: catalog})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	router := chi.NewRouter()
	router.Route("/cart", NewCartHandlers(store, carts).Routes)
	return router
}

func doCart(router http.Handler, method, path, body string) (*httptest.ResponseRecorder, cartPayload) {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	var resp struct {
		Cart cartPayload `json:"cart"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	return rr, resp.Cart
}

func TestCartHandlersAddClampsAndTotals(t *testing.T) {
	store := &memoryCartStore{}
	router := newCartRouter(t, store)

	rr, c := doCart(router, http.MethodPost, "/cart/items", `{"productId":"`+testProductID+`","quantity":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if c.TotalItems != 2 || c.TotalPrice != 2599 || c.Warning != nil {
		t.Fatalf("unexpected cart %+v", c)
	}

	rr, c = doCart(router, http.MethodPost, "/cart/items", `{"productId":"`+testProductID+`","quantity":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if c.Warning == nil || c.Warning.Code != "stock_exceeded" || c.TotalItems != 2 {
		t.Fatalf("expected stock warning with unchanged quantity, got %+v", c)
	}
	if store.saves != 2 {
		t.Fatalf("expected every mutation to be persisted, got %d saves", store.saves)
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatal("cart responses must not be cached")
	}
}

func TestCartHandlersAddErrors(t *testing.T) {
	router := newCartRouter(t, &memoryCartStore{})

	if rr, _ := doCart(router, http.MethodPost, "/cart/items", `{"productId":"bad","quantity":1}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed id: expected 400, got %d", rr.Code)
	}
	if rr, _ := doCart(router, http.MethodPost, "/cart/items", `{"productId":"01HQ7Z9XK3V8M2N4P6R8T0W2Y7","quantity":1}`); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown product: expected 404, got %d", rr.Code)
	}
	if rr, _ := doCart(router, http.MethodPost, "/cart/items", `{"quantity":1}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing id: expected 400, got %d", rr.Code)
	}
}

func TestCartHandlersUpdateRemoveClear(t *testing.T) {
	store := &memoryCartStore{}
	router := newCartRouter(t, store)
	doCart(router, http.MethodPost, "/cart/items", `{"productId":"`+testProductID+`","quantity":1}`)

	rr, c := doCart(router, http.MethodPatch, "/cart/items/"+testProductID, `{"quantity":9}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if c.TotalItems != 3 || c.Warning == nil || c.Warning.Code != "quantity_clamped" {
		t.Fatalf("expected clamp to stock 3, got %+v", c)
	}

	if rr, _ := doCart(router, http.MethodPatch, "/cart/items/"+testProductID, `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing quantity: expected 400, got %d", rr.Code)
	}

	rr, c = doCart(router, http.MethodDelete, "/cart/items/"+testProductID, "")
	if rr.Code != http.StatusOK || len(c.Items) != 0 {
		t.Fatalf("remove failed: %d %+v", rr.Code, c)
	}
	if rr, _ := doCart(router, http.MethodDelete, "/cart/items/"+testProductID, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second remove: expected 404, got %d", rr.Code)
	}

	doCart(router, http.MethodPost, "/cart/items", `{"productId":"`+testProductID+`","quantity":1}`)
	rr, c = doCart(router, http.MethodDelete, "/cart", "")
	if rr.Code != http.StatusOK || c.TotalItems != 0 || !store.cart.Empty() {
		t.Fatalf("clear failed: %d %+v", rr.Code, c)
	}
}

func TestCartHandlersStoreFailure(t *testing.T) {
	router := newCartRouter(t, &memoryCartStore{loadErr: errors.New("redis down")})
	if rr, _ := doCart(router, http.MethodGet, "/cart", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
