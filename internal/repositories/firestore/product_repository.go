package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
	pfirestore "github.com/PastMilk78/escencias-robjans-sub000/internal/platform/firestore"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/repositories"
)

const (
	productCollection = "products"
	defaultListLimit  = 100
)

// ProductRepository persists catalog products in Firestore.
type ProductRepository struct {
	coll *pfirestore.Collection[productDocument]
	now  func() time.Time
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		coll: pfirestore.NewCollection[productDocument](provider, productCollection, nil, nil),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// List returns products newest first, optionally restricted to one category.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	limit := filter.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Category != "" {
			q = q.Where("category", "==", string(filter.Category))
		}
		return q.OrderBy("createdAt", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toDomain(doc.ID))
	}
	return products, nil
}

// FindByID loads one product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.coll.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// Insert creates a product under its pre-assigned id.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) (domain.Product, error) {
	now := r.now()
	product.CreatedAt = now
	product.UpdatedAt = now
	if _, err := r.coll.Create(ctx, product.ID, fromDomainProduct(product)); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// Update overwrites an existing product, keeping its creation time.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	existing, err := r.FindByID(ctx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = r.now()
	if _, err := r.coll.Replace(ctx, product.ID, fromDomainProduct(product)); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	return r.coll.Delete(ctx, productID)
}

type productDocument struct {
	Name        string         `firestore:"name"`
	Category    string         `firestore:"category"`
	Price       string         `firestore:"price"`
	PriceMinor  int64          `firestore:"priceMinor"`
	Stock       int            `firestore:"stock"`
	Description string         `firestore:"description"`
	Image       string         `firestore:"image"`
	InspiredBy  string         `firestore:"inspiredBy,omitempty"`
	Notes       []noteDocument `firestore:"notes"`
	CreatedAt   time.Time      `firestore:"createdAt"`
	UpdatedAt   time.Time      `firestore:"updatedAt"`
}

type noteDocument struct {
	Name      string `firestore:"name"`
	Intensity int    `firestore:"intensity"`
	Color     string `firestore:"color"`
}

func fromDomainProduct(p domain.Product) productDocument {
	notes := make([]noteDocument, 0, len(p.Notes))
	for _, n := range p.Notes {
		notes = append(notes, noteDocument{Name: n.Name, Intensity: n.Intensity, Color: n.Color})
	}
	return productDocument{
		Name:        strings.TrimSpace(p.Name),
		Category:    string(p.Category),
		Price:       p.Price.StringFixed(2),
		PriceMinor:  p.Price.Shift(2).Round(0).IntPart(),
		Stock:       p.Stock,
		Description: p.Description,
		Image:       p.Image,
		InspiredBy:  strings.TrimSpace(p.InspiredBy),
		Notes:       notes,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		price = decimal.New(d.PriceMinor, -2)
	}
	notes := make([]domain.Note, 0, len(d.Notes))
	for _, n := range d.Notes {
		notes = append(notes, domain.Note{Name: n.Name, Intensity: n.Intensity, Color: n.Color})
	}
	return domain.Product{
		ID:          id,
		Name:        d.Name,
		Category:    domain.Category(d.Category),
		Price:       price,
		Stock:       d.Stock,
		Description: d.Description,
		Image:       d.Image,
		InspiredBy:  d.InspiredBy,
		Notes:       notes,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
