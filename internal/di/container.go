package di

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/payments"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/config"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/observability"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/repositories"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

// Registry groups the repositories the services are built on.
type Registry struct {
	Products repositories.ProductRepository
	Users    repositories.UserRepository
	Reviews  repositories.ReviewRepository
	Health   repositories.HealthRepository
}

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Catalog  services.CatalogService
	Cart     services.CartService
	Checkout services.CheckoutService
	Payments services.PaymentEventService
	Reviews  services.ReviewService
	Users    services.UserService
	System   services.SystemService
}

// Deps carries everything the container needs besides the repositories.
// Gateway, Publisher, Images and Metrics are optional.
type Deps struct {
	Config    config.Config
	Registry  Registry
	Gateway   payments.Gateway
	Publisher payments.EventPublisher
	Images    services.ImageUploader
	Metrics   *observability.Metrics
	Logger    *zap.Logger
	Build     services.BuildInfo
}

// Container builds the service graph once. Concurrent first callers share a
// single build; a failed build is not cached so the next call retries.
type Container struct {
	deps  Deps
	group singleflight.Group

	mu       sync.RWMutex
	services *Services
	builds   int
}

// NewContainer validates deps. No service is constructed until Services is called.
func NewContainer(deps Deps) (*Container, error) {
	if deps.Registry.Products == nil {
		return nil, errors.New("di: product repository is required")
	}
	if deps.Gateway == nil {
		// an unconfigured gateway answers every checkout with ErrNotConfigured
		deps.Gateway = payments.NewStripeGateway(payments.StripeConfig{})
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Build.StartedAt.IsZero() {
		deps.Build.StartedAt = time.Now().UTC()
	}
	return &Container{deps: deps}, nil
}

// Services returns the shared service graph, building it on first use.
func (c *Container) Services(ctx context.Context) (Services, error) {
	c.mu.RLock()
	built := c.services
	c.mu.RUnlock()
	if built != nil {
		return *built, nil
	}

	v, err, _ := c.group.Do("services", func() (any, error) {
		c.mu.RLock()
		existing := c.services
		c.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}
		svc, err := c.build(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.services = &svc
		c.builds++
		c.mu.Unlock()
		return &svc, nil
	})
	if err != nil {
		return Services{}, err
	}
	return *v.(*Services), nil
}

func (c *Container) build(_ context.Context) (Services, error) {
	d := c.deps
	cfg := d.Config
	reg := d.Registry
	var svc Services

	catalogDeps := services.CatalogServiceDeps{
		Products: reg.Products,
		Images:   d.Images,
		Logger:   observability.EventLogger(d.Logger.Named("catalog")),
	}
	if d.Metrics != nil {
		catalogDeps.OnFallback = d.Metrics.CatalogFallbacks.Inc
	}
	catalog, err := services.NewCatalogService(catalogDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalog

	carts, err := services.NewCartService(services.CartServiceDeps{
		Catalog: catalog,
		Logger:  observability.EventLogger(d.Logger.Named("cart")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = carts

	checkoutDeps := services.CheckoutServiceDeps{
		Gateway:     d.Gateway,
		Currency:    cfg.Stripe.Currency,
		PublicURL:   cfg.Server.PublicURL,
		SuccessPath: cfg.Stripe.SuccessPath,
		CancelPath:  cfg.Stripe.CancelPath,
		Logger:      observability.EventLogger(d.Logger.Named("checkout")),
	}
	if d.Metrics != nil {
		checkoutDeps.OnOutcome = func(outcome string) { d.Metrics.CheckoutSessions.WithLabelValues(outcome).Inc() }
	}
	checkout, err := services.NewCheckoutService(checkoutDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkout

	eventDeps := services.PaymentEventServiceDeps{
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Publisher:     d.Publisher,
		Logger:        observability.EventLogger(d.Logger.Named("webhooks")),
	}
	if d.Metrics != nil {
		eventDeps.OnEvent = func(eventType string) { d.Metrics.WebhookEvents.WithLabelValues(eventType).Inc() }
	}
	svc.Payments = services.NewPaymentEventService(eventDeps)

	if reg.Reviews != nil {
		reviews, err := services.NewReviewService(services.ReviewServiceDeps{
			Reviews: reg.Reviews,
			Logger:  observability.EventLogger(d.Logger.Named("reviews")),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build review service: %w", err)
		}
		svc.Reviews = reviews
	}

	if reg.Users != nil {
		users, err := services.NewUserService(services.UserServiceDeps{
			Users:        reg.Users,
			IsAdminEmail: cfg.Admin.IsAdminEmail,
			Logger:       observability.EventLogger(d.Logger.Named("users")),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build user service: %w", err)
		}
		svc.Users = users
	}

	if reg.Health != nil {
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: reg.Health,
			Clock:            time.Now,
			Build:            d.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = system
	}

	return svc, nil
}
