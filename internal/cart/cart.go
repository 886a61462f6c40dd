// Package cart holds the browser-scoped shopping cart and its persistence.
package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
)

// ErrLineNotFound is returned when an operation targets a product that is not in the cart.
var ErrLineNotFound = errors.New("cart: product not in cart")

// Warning codes returned alongside a successful mutation.
const (
	WarningOutOfStock    = "out_of_stock"
	WarningStockExceeded = "stock_exceeded"
	WarningClamped       = "quantity_clamped"
)

// Warning tells the shopper their request was not applied as asked.
type Warning struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ProductID string `json:"productId"`
	Available int    `json:"available"`
}

// Line is a product snapshot plus the requested quantity.
type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot captures the product fields a cart line keeps. Inline data URL
// images are dropped so the cart stays small enough for a cookie.
func Snapshot(p domain.Product) Line {
	image := p.Image
	if strings.HasPrefix(strings.TrimSpace(image), "data:") {
		image = ""
	}
	return Line{
		ProductID: p.ID,
		Name:      p.Name,
		Category:  string(p.Category),
		Price:     p.Price,
		Stock:     p.Stock,
		Image:     image,
	}
}

// Cart is an ordered list of lines keyed by product id. The zero value is an empty cart.
type Cart struct {
	Lines []Line `json:"items"`
}

func (c *Cart) index(productID string) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add merges qty units of product into the cart.
//
// A product without stock is refused. For an existing line, a total above the
// stock leaves the quantity untouched. A new line is clamped to [1, stock].
// Each of these outcomes returns a warning.
func (c *Cart) Add(product Line, qty int) *Warning {
	if product.Stock <= 0 {
		return &Warning{
			Code:      WarningOutOfStock,
			Message:   fmt.Sprintf("%s is out of stock", product.Name),
			ProductID: product.ProductID,
		}
	}
	if qty < 1 {
		qty = 1
	}

	if i := c.index(product.ProductID); i >= 0 {
		existing := c.Lines[i]
		if existing.Quantity+qty > product.Stock {
			return &Warning{
				Code:      WarningStockExceeded,
				Message:   fmt.Sprintf("only %d units of %s are available", product.Stock, product.Name),
				ProductID: product.ProductID,
				Available: product.Stock,
			}
		}
		product.Quantity = existing.Quantity + qty
		c.Lines[i] = product
		return nil
	}

	var warning *Warning
	if qty > product.Stock {
		qty = product.Stock
		warning = clampedWarning(product)
	}
	product.Quantity = qty
	c.Lines = append(c.Lines, product)
	return warning
}

// Update sets the quantity of an existing line. qty <= 0 removes it, and so
// does a line whose product has sold out, with an out-of-stock warning.
func (c *Cart) Update(productID string, qty int) (*Warning, error) {
	i := c.index(productID)
	if i < 0 {
		return nil, ErrLineNotFound
	}
	if qty <= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return nil, nil
	}
	if c.Lines[i].Stock <= 0 {
		line := c.Lines[i]
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return &Warning{
			Code:      WarningOutOfStock,
			Message:   fmt.Sprintf("%s is out of stock", line.Name),
			ProductID: line.ProductID,
		}, nil
	}
	line := &c.Lines[i]
	if qty > line.Stock {
		line.Quantity = line.Stock
		return clampedWarning(*line), nil
	}
	line.Quantity = qty
	return nil, nil
}

// Refresh replaces the snapshot fields of a line with live product data, keeping the quantity.
func (c *Cart) Refresh(product Line) {
	i := c.index(product.ProductID)
	if i < 0 {
		return
	}
	product.Quantity = c.Lines[i].Quantity
	c.Lines[i] = product
}

// Remove drops the line for productID and reports whether it existed.
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Line returns the line for productID.
func (c *Cart) Line(productID string) (Line, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Lines[i], true
	}
	return Line{}, false
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

// TotalPrice sums price x quantity over all lines.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// TotalItems sums quantities over all lines.
func (c *Cart) TotalItems() int {
	total := 0
	for _, line := range c.Lines {
		total += line.Quantity
	}
	return total
}

func clampedWarning(line Line) *Warning {
	return &Warning{
		Code:      WarningClamped,
		Message:   fmt.Sprintf("quantity of %s limited to the %d units in stock", line.Name, line.Stock),
		ProductID: line.ProductID,
		Available: line.Stock,
	}
}
