package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/cart"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/httpx"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/observability"
	"github.com/PastMilk78/escencias-robjans-sub000/internal/services"
)

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeInternalError logs the detail and answers with a generic message.
func writeInternalError(ctx context.Context, w http.ResponseWriter, code string, err error) {
	observability.FromContext(ctx).Error("request failed", zap.String("code", code), zap.Error(err))
	httpx.WriteError(ctx, w, httpx.NewError(code, "internal error", http.StatusInternalServerError))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

type notePayload struct {
	Name      string `json:"name"`
	Intensity int    `json:"intensity"`
	Color     string `json:"color"`
}

type productPayload struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Category    string        `json:"category"`
	Price       float64       `json:"price"`
	Stock       int           `json:"stock"`
	Description string        `json:"description,omitempty"`
	Image       string        `json:"image"`
	InspiredBy  string        `json:"inspiredBy,omitempty"`
	Notes       []notePayload `json:"notes"`
	CreatedAt   string        `json:"createdAt,omitempty"`
	UpdatedAt   string        `json:"updatedAt,omitempty"`
}

func buildProductPayload(p services.Product) productPayload {
	notes := make([]notePayload, 0, len(p.Notes))
	for _, n := range p.Notes {
		notes = append(notes, notePayload{Name: n.Name, Intensity: n.Intensity, Color: n.Color})
	}
	return productPayload{
		ID:          p.ID,
		Name:        p.Name,
		Category:    string(p.Category),
		Price:       p.Price.InexactFloat64(),
		Stock:       p.Stock,
		Description: p.Description,
		Image:       p.Image,
		InspiredBy:  p.InspiredBy,
		Notes:       notes,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}

func buildProductPayloads(products []services.Product) []productPayload {
	out := make([]productPayload, 0, len(products))
	for _, p := range products {
		out = append(out, buildProductPayload(p))
	}
	return out
}

type cartLinePayload struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	Stock     int     `json:"stock"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type cartWarningPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ProductID string `json:"productId"`
	Available int    `json:"available,omitempty"`
}

type cartPayload struct {
	Items      []cartLinePayload   `json:"items"`
	TotalPrice float64             `json:"totalPrice"`
	TotalItems int                 `json:"totalItems"`
	Warning    *cartWarningPayload `json:"warning,omitempty"`
}

func buildCartPayload(c *cart.Cart, warning *cart.Warning) cartPayload {
	items := make([]cartLinePayload, 0, len(c.Lines))
	for _, line := range c.Lines {
		items = append(items, cartLinePayload{
			ProductID: line.ProductID,
			Name:      line.Name,
			Category:  line.Category,
			Price:     line.Price.InexactFloat64(),
			Stock:     line.Stock,
			Image:     line.Image,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal().InexactFloat64(),
		})
	}
	payload := cartPayload{
		Items:      items,
		TotalPrice: c.TotalPrice().InexactFloat64(),
		TotalItems: c.TotalItems(),
	}
	if warning != nil {
		payload.Warning = &cartWarningPayload{
			Code:      warning.Code,
			Message:   warning.Message,
			ProductID: warning.ProductID,
			Available: warning.Available,
		}
	}
	return payload
}

type reviewPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Comment   string `json:"comment"`
	Rating    int    `json:"rating"`
	CreatedAt string `json:"createdAt"`
}

func buildReviewPayload(r services.Review) reviewPayload {
	return reviewPayload{
		ID:        r.ID,
		Name:      r.Name,
		Comment:   r.Comment,
		Rating:    r.Rating,
		CreatedAt: formatTime(r.CreatedAt),
	}
}

type userPayload struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Image     string   `json:"image,omitempty"`
	Role      string   `json:"role"`
	Providers []string `json:"providers"`
}

func buildUserPayload(u services.User) userPayload {
	return userPayload{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Image:     u.Image,
		Role:      u.Role,
		Providers: u.Providers,
	}
}
