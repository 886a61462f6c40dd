package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/validation"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/repositories"
)

const (
	defaultProductLimit = 50
	maxProductLimit     = 100
)

var (
	// ErrCatalogRepositoryMissing indicates the product repository dependency is absent.
	ErrCatalogRepositoryMissing = errors.New("catalog service: repository is not configured")
	// ErrCatalogInvalidInput indicates malformed ids or payloads.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogInvalidProductID indicates a product id that is not a ULID. It matches ErrCatalogInvalidInput.
	ErrCatalogInvalidProductID = fmt.Errorf("%w: malformed product id", ErrCatalogInvalidInput)
	// ErrCatalogNotFound indicates the product does not exist.
	ErrCatalogNotFound = errors.New("catalog service: product not found")
	// ErrCatalogConflict indicates a concurrent write won.
	ErrCatalogConflict = errors.New("catalog service: conflict")
	// ErrCatalogUnavailable indicates the product store could not be reached.
	ErrCatalogUnavailable = errors.New("catalog service: store unavailable")
)

// ImageUploader moves inline data URL images to object storage.
type ImageUploader interface {
	UploadDataURL(ctx context.Context, productID, dataURL string) (string, error)
}

// ProductFilter narrows a catalog listing.
type ProductFilter struct {
	Category string
	Limit    int
}

// ProductList is a page of products. Fallback is set when the placeholder
// catalog was served because the store failed.
type ProductList struct {
	Products []Product
	Fallback bool
}

// NoteCommand describes one fragrance note of a product.
type NoteCommand struct {
	Name      string `json:"name" validate:"required,max=40"`
	Intensity int    `json:"intensity" validate:"gte=1,lte=10"`
	Color     string `json:"color" validate:"required,notecolor"`
}

// ProductCommand carries the editable fields of a product.
type ProductCommand struct {
	Name        string          `json:"name" validate:"required,max=120"`
	Category    string          `json:"category" validate:"required,category"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Description string          `json:"description" validate:"max=4000"`
	Image       string          `json:"image" validate:"required,imageref"`
	InspiredBy  string          `json:"inspiredBy" validate:"max=120"`
	Notes       []NoteCommand   `json:"notes" validate:"max=12,dive"`
}

// CatalogServiceDeps bundles collaborators required to construct a CatalogService.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Images      ImageUploader
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
	// OnFallback is invoked each time the placeholder catalog is served.
	OnFallback func()
	Fallback   []Product
}

type catalogService struct {
	products   repositories.ProductRepository
	images     ImageUploader
	clock      func() time.Time
	newID      func() string
	logger     func(ctx context.Context, event string, fields map[string]any)
	onFallback func()
	fallback   []Product
	policy     *bluemonday.Policy
	titleCase  cases.Caser
	listGroup  singleflight.Group
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService wires dependencies into a CatalogService.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, ErrCatalogRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	onFallback := deps.OnFallback
	if onFallback == nil {
		onFallback = func() {}
	}
	fallback := deps.Fallback
	if len(fallback) == 0 {
		fallback = FallbackCatalog()
	}
	return &catalogService{
		products:   deps.Products,
		images:     deps.Images,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		logger:     logger,
		onFallback: onFallback,
		fallback:   fallback,
		policy:     bluemonday.StrictPolicy(),
		titleCase:  cases.Title(language.Spanish),
	}, nil
}

// ListProducts returns products from the store. Any store failure is
// answered with the placeholder catalog instead of an error.
func (s *catalogService) ListProducts(ctx context.Context, filter ProductFilter) (ProductList, error) {
	category := domain.Category(strings.TrimSpace(filter.Category))
	if category != "" && !category.Valid() {
		return ProductList{}, fmt.Errorf("%w: unknown category %q", ErrCatalogInvalidInput, filter.Category)
	}
	limit := filter.Limit
	switch {
	case limit < 0:
		return ProductList{}, fmt.Errorf("%w: limit must be positive", ErrCatalogInvalidInput)
	case limit == 0:
		limit = defaultProductLimit
	case limit > maxProductLimit:
		limit = maxProductLimit
	}

	key := fmt.Sprintf("%s|%d", category, limit)
	v, err, shared := s.listGroup.Do(key, func() (any, error) {
		// Shared by every coalesced caller, so one client hanging up must not cancel it.
		return s.products.List(context.WithoutCancel(ctx), repositories.ProductListFilter{Category: category, Limit: limit})
	})
	if err != nil {
		s.logger(ctx, "catalog.fallback", map[string]any{
			"error":    err.Error(),
			"category": string(category),
			"shared":   shared,
		})
		s.onFallback()
		return ProductList{Products: s.fallbackFor(category, limit), Fallback: true}, nil
	}
	return ProductList{Products: slices.Clone(v.([]Product))}, nil
}

func (s *catalogService) fallbackFor(category domain.Category, limit int) []Product {
	out := make([]Product, 0, len(s.fallback))
	for _, p := range s.fallback {
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}

// GetProduct loads one product by id.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	id, err := parseProductID(productID)
	if err != nil {
		return Product{}, err
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.mapRepoError(err)
	}
	return product, nil
}

// CreateProduct validates cmd and stores a new product.
func (s *catalogService) CreateProduct(ctx context.Context, cmd ProductCommand) (Product, error) {
	product, err := s.buildProduct(ctx, s.newID(), cmd)
	if err != nil {
		return Product{}, err
	}
	created, err := s.products.Insert(ctx, product)
	if err != nil {
		return Product{}, s.mapRepoError(err)
	}
	s.logger(ctx, "catalog.product.created", map[string]any{"productId": created.ID})
	return created, nil
}

// UpdateProduct replaces the editable fields of an existing product.
func (s *catalogService) UpdateProduct(ctx context.Context, productID string, cmd ProductCommand) (Product, error) {
	id, err := parseProductID(productID)
	if err != nil {
		return Product{}, err
	}
	product, err := s.buildProduct(ctx, id, cmd)
	if err != nil {
		return Product{}, err
	}
	updated, err := s.products.Update(ctx, product)
	if err != nil {
		return Product{}, s.mapRepoError(err)
	}
	s.logger(ctx, "catalog.product.updated", map[string]any{"productId": id})
	return updated, nil
}

// DeleteProduct removes a product.
func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	id, err := parseProductID(productID)
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return s.mapRepoError(err)
	}
	s.logger(ctx, "catalog.product.deleted", map[string]any{"productId": id})
	return nil
}

// NotesChart renders the product's notes as an SVG radar chart.
func (s *catalogService) NotesChart(ctx context.Context, productID string) ([]byte, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return RenderNotesChart(product.Notes), nil
}

func (s *catalogService) buildProduct(ctx context.Context, id string, cmd ProductCommand) (Product, error) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.Category = strings.TrimSpace(cmd.Category)
	cmd.Image = strings.TrimSpace(cmd.Image)
	if err := validation.Struct(cmd); err != nil {
		return Product{}, fmt.Errorf("%w: %w", ErrCatalogInvalidInput, err)
	}

	image := cmd.Image
	if s.images != nil && strings.HasPrefix(image, "data:") {
		uploaded, err := s.images.UploadDataURL(ctx, id, image)
		if err != nil {
			return Product{}, fmt.Errorf("%w: image: %w", ErrCatalogInvalidInput, err)
		}
		image = uploaded
	}

	notes := make([]Note, 0, len(cmd.Notes))
	for _, n := range cmd.Notes {
		notes = append(notes, Note{
			Name:      s.titleCase.String(strings.TrimSpace(n.Name)),
			Intensity: n.Intensity,
			Color:     strings.ToLower(strings.TrimSpace(n.Color)),
		})
	}

	return Product{
		ID:          id,
		Name:        cmd.Name,
		Category:    domain.Category(cmd.Category),
		Price:       cmd.Price.Round(2),
		Stock:       cmd.Stock,
		Description: plainText(s.policy, cmd.Description),
		Image:       image,
		InspiredBy:  strings.TrimSpace(cmd.InspiredBy),
		Notes:       notes,
	}, nil
}

func (s *catalogService) mapRepoError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCatalogNotFound
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCatalogConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
	}
	return fmt.Errorf("catalog service: %w", err)
}

// plainText strips markup and undoes the entity escaping bluemonday applies,
// since the result is served as JSON rather than HTML.
func plainText(policy *bluemonday.Policy, raw string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(raw)))
}

func parseProductID(raw string) (string, error) {
	id, err := ulid.ParseStrict(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrCatalogInvalidProductID
	}
	return id.String(), nil
}
