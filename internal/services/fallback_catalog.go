package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
)

var fallbackEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// FallbackCatalog returns the placeholder products shown while the store is
// unreachable. They carry no stock so they cannot be added to a cart.
func FallbackCatalog() []Product {
	products := []Product{
		{
			ID:          "01HQ0000000000000000000001",
			Name:        "Rosa Imperial",
			Category:    domain.CategoryWomen,
			Price:       decimal.RequireFromString("899.00"),
			Description: "Floral con rosa de Damasco y pera.",
			Image:       "/images/placeholder-perfume.svg",
			InspiredBy:  "Delina",
			Notes: []Note{
				{Name: "Rosa", Intensity: 9, Color: "#e75480"},
				{Name: "Pera", Intensity: 6, Color: "#d1e231"},
				{Name: "Almizcle", Intensity: 5, Color: "#c9b6a6"},
			},
		},
		{
			ID:          "01HQ0000000000000000000002",
			Name:        "Cuero Nocturno",
			Category:    domain.CategoryMen,
			Price:       decimal.RequireFromString("949.00"),
			Description: "Amaderado especiado con cuero y cardamomo.",
			Image:       "/images/placeholder-perfume.svg",
			InspiredBy:  "Ombré Leather",
			Notes: []Note{
				{Name: "Cuero", Intensity: 9, Color: "#5c4033"},
				{Name: "Cardamomo", Intensity: 6, Color: "#7ba05b"},
				{Name: "Pachulí", Intensity: 5, Color: "#6b4423"},
			},
		},
		{
			ID:          "01HQ0000000000000000000003",
			Name:        "Vainilla Ámbar",
			Category:    domain.CategoryUnisex,
			Price:       decimal.RequireFromString("999.00"),
			Description: "Oriental cálido de vainilla, ámbar y tabaco.",
			Image:       "/images/placeholder-perfume.svg",
			InspiredBy:  "Tobacco Vanille",
			Notes: []Note{
				{Name: "Vainilla", Intensity: 8, Color: "#f3e5ab"},
				{Name: "Tabaco", Intensity: 7, Color: "#8b5a2b"},
				{Name: "Ámbar", Intensity: 6, Color: "#ffbf00"},
			},
		},
		{
			ID:          "01HQ0000000000000000000004",
			Name:        "Brisa Cítrica",
			Category:    domain.CategoryUnisex,
			Price:       decimal.RequireFromString("749.00"),
			Description: "Fresco de bergamota, neroli y té blanco.",
			Image:       "/images/placeholder-perfume.svg",
			InspiredBy:  "Neroli Portofino",
			Notes: []Note{
				{Name: "Bergamota", Intensity: 8, Color: "#f7e35a"},
				{Name: "Neroli", Intensity: 6, Color: "#fff5e1"},
				{Name: "Té Blanco", Intensity: 4, Color: "#e8e4c9"},
			},
		},
	}
	for i := range products {
		products[i].CreatedAt = fallbackEpoch
		products[i].UpdatedAt = fallbackEpoch
	}
	return products
}
