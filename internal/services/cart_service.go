package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/cart"
)

var (
	// ErrCartInvalidInput indicates a malformed product id or quantity.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartItemNotFound indicates the product is not in the cart.
	ErrCartItemNotFound = errors.New("cart: item not found")
	// ErrCartProductNotFound indicates the product does not exist in the catalog.
	ErrCartProductNotFound = errors.New("cart: product not found")
)

// CartServiceDeps bundles collaborators required to construct a CartService.
type CartServiceDeps struct {
	Catalog CatalogService
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	catalog CatalogService
	logger  func(ctx context.Context, event string, fields map[string]any)
}

var _ CartService = (*cartService)(nil)

// NewCartService constructs a CartService backed by the catalog.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartService{catalog: deps.Catalog, logger: logger}, nil
}

// AddItem resolves the live product and merges it into c.
func (s *cartService) AddItem(ctx context.Context, c *cart.Cart, productID string, quantity int) (*cart.Warning, error) {
	product, err := s.lookup(ctx, productID)
	if err != nil {
		return nil, err
	}
	warning := c.Add(cart.Snapshot(product), quantity)
	if warning != nil {
		s.logger(ctx, "cart.add.warning", map[string]any{"productId": product.ID, "code": warning.Code})
	}
	return warning, nil
}

// UpdateItem sets the quantity of an existing line, refreshing its stock from the catalog when possible.
func (s *cartService) UpdateItem(ctx context.Context, c *cart.Cart, productID string, quantity int) (*cart.Warning, error) {
	if _, ok := c.Line(productID); !ok {
		return nil, ErrCartItemNotFound
	}
	if quantity > 0 {
		if product, err := s.catalog.GetProduct(ctx, productID); err == nil {
			c.Refresh(cart.Snapshot(product))
		} else {
			s.logger(ctx, "cart.update.refresh_failed", map[string]any{"productId": productID, "error": err.Error()})
		}
	}
	warning, err := c.Update(productID, quantity)
	if errors.Is(err, cart.ErrLineNotFound) {
		return nil, ErrCartItemNotFound
	}
	return warning, err
}

// RemoveItem drops a line from c.
func (s *cartService) RemoveItem(_ context.Context, c *cart.Cart, productID string) error {
	if !c.Remove(productID) {
		return ErrCartItemNotFound
	}
	return nil
}

func (s *cartService) lookup(ctx context.Context, productID string) (Product, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	switch {
	case err == nil:
		return product, nil
	case errors.Is(err, ErrCatalogInvalidInput):
		return Product{}, fmt.Errorf("%w: malformed product id", ErrCartInvalidInput)
	case errors.Is(err, ErrCatalogNotFound):
		return Product{}, ErrCartProductNotFound
	default:
		return Product{}, err
	}
}
