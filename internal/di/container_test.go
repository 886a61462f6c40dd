package di

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/cart"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/config"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/observability"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/repositories"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

type unavailableError struct{}

func (unavailableError) Error() string       { return "firestore unavailable" }
func (unavailableError) IsNotFound() bool    { return false }
func (unavailableError) IsConflict() bool    { return false }
func (unavailableError) IsUnavailable() bool { return true }

type downProducts struct{}

func (downProducts) List(context.Context, repositories.ProductListFilter) ([]domain.Product, error) {
	return nil, unavailableError{}
}
func (downProducts) FindByID(context.Context, string) (domain.Product, error) {
	return domain.Product{}, unavailableError{}
}
func (downProducts) Insert(context.Context, domain.Product) (domain.Product, error) {
	return domain.Product{}, unavailableError{}
}
func (downProducts) Update(context.Context, domain.Product) (domain.Product, error) {
	return domain.Product{}, unavailableError{}
}
func (downProducts) Delete(context.Context, string) error { return unavailableError{} }

func TestNewContainerRequiresProducts(t *testing.T) {
	if _, err := NewContainer(Deps{}); err == nil {
		t.Fatal("expected error without product repository")
	}
}

func TestContainerBuildsOnceUnderConcurrency(t *testing.T) {
	c, err := NewContainer(Deps{Registry: Registry{Products: downProducts{}}})
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]Services, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc, err := c.Services(context.Background())
			if err != nil {
				t.Errorf("Services: %v", err)
			}
			results[i] = svc
		}(i)
	}
	wg.Wait()

	if c.builds != 1 {
		t.Fatalf("expected a single build, got %d", c.builds)
	}
	for _, svc := range results[1:] {
		if svc.Catalog != results[0].Catalog {
			t.Fatal("callers must share one service graph")
		}
	}
	if results[0].Users != nil || results[0].Reviews != nil || results[0].System != nil {
		t.Fatal("services without repositories must stay nil")
	}
}

func TestContainerWiresMetricsAndDefaults(t *testing.T) {
	metrics := observability.NewMetrics("test")
	c, err := NewContainer(Deps{
		Registry: Registry{Products: downProducts{}},
		Metrics:  metrics,
		Config:   config.Config{Server: config.ServerConfig{PublicURL: "https://robjans.example"}},
	})
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	svc, err := c.Services(context.Background())
	if err != nil {
		t.Fatalf("Services: %v", err)
	}

	list, err := svc.Catalog.ListProducts(context.Background(), services.ProductFilter{})
	if err != nil || !list.Fallback {
		t.Fatalf("expected fallback catalog, got %+v %v", list, err)
	}

	c1 := &cart.Cart{Lines: []cart.Line{{ProductID: list.Products[0].ID, Name: "Rosa", Price: list.Products[0].Price, Quantity: 1}}}
	_, err = svc.Checkout.CreateSession(context.Background(), services.CheckoutCommand{Cart: c1})
	if !errors.Is(err, services.ErrCheckoutNotConfigured) {
		t.Fatalf("expected checkout to report missing gateway config, got %v", err)
	}

	families, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range families {
		seen[f.GetName()] = true
	}
	for _, name := range []string{"test_catalog_fallback_total", "test_checkout_sessions_total"} {
		if !seen[name] {
			t.Fatalf("expected %s to be recorded", name)
		}
	}
}
