package services

import (
	"context"
	"errors"
	"testing"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/cart"
)

func newTestCartService(t *testing.T, repo *stubProductRepo) CartService {
	t.Helper()
	svc, err := NewCartService(CartServiceDeps{Catalog: newTestCatalog(t, repo)})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return svc
}

func TestCartServiceAddMergesAndClamps(t *testing.T) {
	svc := newTestCartService(t, newStubProductRepo(sampleProducts()...))
	var c cart.Cart

	if w, err := svc.AddItem(context.Background(), &c, noirID, 3); err != nil || w != nil {
		t.Fatalf("AddItem: warning=%v err=%v", w, err)
	}
	w, err := svc.AddItem(context.Background(), &c, noirID, 2)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if w == nil || w.Code != cart.WarningStockExceeded {
		t.Fatalf("expected stock warning, got %+v", w)
	}
	if line, _ := c.Line(noirID); line.Quantity != 3 {
		t.Fatalf("quantity must stay at 3, got %d", line.Quantity)
	}

	w, err = svc.AddItem(context.Background(), &c, bloomID, 9)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if w == nil || w.Code != cart.WarningClamped {
		t.Fatalf("expected clamp warning, got %+v", w)
	}
	if line, _ := c.Line(bloomID); line.Quantity != 2 {
		t.Fatalf("new line must clamp to stock, got %d", line.Quantity)
	}
	if c.TotalItems() != 5 {
		t.Fatalf("expected 5 items, got %d", c.TotalItems())
	}
}

func TestCartServiceAddErrors(t *testing.T) {
	svc := newTestCartService(t, newStubProductRepo(sampleProducts()...))
	var c cart.Cart

	if _, err := svc.AddItem(context.Background(), &c, "bogus", 1); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := svc.AddItem(context.Background(), &c, "01HQ7Z9XK3V8M2N4P6R8T0W2Y7", 1); !errors.Is(err, ErrCartProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
	if !c.Empty() {
		t.Fatal("failed adds must leave the cart untouched")
	}
}

func TestCartServiceLargeQuantityClampsToStockOnly(t *testing.T) {
	repo := newStubProductRepo(sampleProducts()...)
	bulk := repo.products[noirID]
	bulk.Stock = 500
	repo.products[noirID] = bulk
	svc := newTestCartService(t, repo)
	var c cart.Cart

	w, err := svc.AddItem(context.Background(), &c, noirID, 120)
	if err != nil || w != nil {
		t.Fatalf("AddItem: warning=%v err=%v", w, err)
	}
	if line, _ := c.Line(noirID); line.Quantity != 120 {
		t.Fatalf("expected quantity 120, got %d", line.Quantity)
	}
	if w, err := svc.UpdateItem(context.Background(), &c, noirID, 450); err != nil || w != nil {
		t.Fatalf("UpdateItem: warning=%v err=%v", w, err)
	}
	if line, _ := c.Line(noirID); line.Quantity != 450 {
		t.Fatalf("expected quantity 450, got %d", line.Quantity)
	}
}

func TestCartServiceUpdateRefreshesStock(t *testing.T) {
	repo := newStubProductRepo(sampleProducts()...)
	svc := newTestCartService(t, repo)
	var c cart.Cart
	if _, err := svc.AddItem(context.Background(), &c, noirID, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	restocked := repo.products[noirID]
	restocked.Stock = 20
	repo.products[noirID] = restocked

	w, err := svc.UpdateItem(context.Background(), &c, noirID, 12)
	if err != nil || w != nil {
		t.Fatalf("UpdateItem: warning=%v err=%v", w, err)
	}
	if line, _ := c.Line(noirID); line.Quantity != 12 {
		t.Fatalf("expected quantity 12, got %d", line.Quantity)
	}

	soldOut := repo.products[noirID]
	soldOut.Stock = 0
	repo.products[noirID] = soldOut

	w, err = svc.UpdateItem(context.Background(), &c, noirID, 3)
	if err != nil {
		t.Fatalf("UpdateItem after sell-out: %v", err)
	}
	if w == nil || w.Code != cart.WarningOutOfStock {
		t.Fatalf("expected out of stock warning, got %+v", w)
	}
	if _, ok := c.Line(noirID); ok || c.TotalItems() != 0 {
		t.Fatalf("sold out line must be dropped, cart=%+v", c.Lines)
	}

	restocked.Stock = 20
	repo.products[noirID] = restocked
	if _, err := svc.AddItem(context.Background(), &c, noirID, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.UpdateItem(context.Background(), &c, noirID, 0); err != nil {
		t.Fatalf("UpdateItem to zero: %v", err)
	}
	if !c.Empty() {
		t.Fatal("zero quantity must remove the line")
	}
	if _, err := svc.UpdateItem(context.Background(), &c, noirID, 1); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected item not found, got %v", err)
	}
}

func TestCartServiceRemove(t *testing.T) {
	svc := newTestCartService(t, newStubProductRepo(sampleProducts()...))
	var c cart.Cart
	if _, err := svc.AddItem(context.Background(), &c, bloomID, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := svc.RemoveItem(context.Background(), &c, bloomID); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if err := svc.RemoveItem(context.Background(), &c, bloomID); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected item not found, got %v", err)
	}
}
