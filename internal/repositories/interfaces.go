package repositories

import (
	"context"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductListFilter narrows catalog listings.
type ProductListFilter struct {
	Category domain.Category
	Limit    int
}

// ProductRepository persists catalog products.
type ProductRepository interface {
	List(ctx context.Context, filter ProductListFilter) ([]domain.Product, error)
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	Insert(ctx context.Context, product domain.Product) (domain.Product, error)
	Update(ctx context.Context, product domain.Product) (domain.Product, error)
	Delete(ctx context.Context, productID string) error
}

// UserRepository persists storefront accounts. Emails are unique.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Update(ctx context.Context, user domain.User) (domain.User, error)
}

// ReviewRepository stores customer reviews. Reviews are append-only.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) (domain.Review, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Review, error)
}

// HealthRepository probes backing services for readiness and diagnostics.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
	Check(ctx context.Context, name string) (domain.HealthCheck, error)
}
