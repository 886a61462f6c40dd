package services

import (
	"context"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/cart"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/payments"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product      = domain.Product
	Note         = domain.Note
	Category     = domain.Category
	User         = domain.User
	Review       = domain.Review
	HealthReport = domain.HealthReport
	HealthCheck  = domain.HealthCheck
)

// CatalogService serves the public catalog and the admin product CRUD.
type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductFilter) (ProductList, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	CreateProduct(ctx context.Context, cmd ProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, productID string, cmd ProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	NotesChart(ctx context.Context, productID string) ([]byte, error)
}

// CartService applies cart mutations against live catalog data.
type CartService interface {
	AddItem(ctx context.Context, c *cart.Cart, productID string, quantity int) (*cart.Warning, error)
	UpdateItem(ctx context.Context, c *cart.Cart, productID string, quantity int) (*cart.Warning, error)
	RemoveItem(ctx context.Context, c *cart.Cart, productID string) error
}

// CheckoutService turns a cart into a hosted payment session.
type CheckoutService interface {
	CreateSession(ctx context.Context, cmd CheckoutCommand) (payments.CheckoutSession, error)
}

// PaymentEventService receives asynchronous gateway notifications.
type PaymentEventService interface {
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (payments.Event, error)
}

// ReviewService lists and records customer reviews.
type ReviewService interface {
	List(ctx context.Context, opts ReviewListOptions) ([]Review, error)
	Create(ctx context.Context, cmd CreateReviewCommand) (Review, error)
}

// UserService manages accounts and resolves sign-ins to users.
type UserService interface {
	Register(ctx context.Context, cmd RegisterCommand) (User, error)
	Authenticate(ctx context.Context, email, password string) (User, error)
	SignInExternal(ctx context.Context, profile ExternalProfile) (User, error)
	GetUser(ctx context.Context, userID string) (User, error)
}

// SystemService reports dependency health.
type SystemService interface {
	HealthReport(ctx context.Context) (HealthReport, error)
	DatabaseDiagnostic(ctx context.Context) (HealthCheck, error)
}
