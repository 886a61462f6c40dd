package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups fragrances by audience.
type Category string

const (
	CategoryWomen  Category = "Mujer"
	CategoryMen    Category = "Hombre"
	CategoryUnisex Category = "Unisex"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryWomen, CategoryMen, CategoryUnisex}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryWomen, CategoryMen, CategoryUnisex:
		return true
	}
	return false
}

// Note is one fragrance component drawn on the product radar chart.
type Note struct {
	Name      string
	Intensity int
	Color     string
}

// Product is a perfume offered in the catalog.
type Product struct {
	ID          string
	Name        string
	Category    Category
	Price       decimal.Decimal
	Stock       int
	Description string
	Image       string
	InspiredBy  string
	Notes       []Note
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}
