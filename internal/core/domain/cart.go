package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem snapshots price and name at add-time so settled carts keep
// their historical totals even if the product changes later.
type CartItem struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
	Name      string
}

type Cart struct {
	ID          string
	UserID      string
	Items       []CartItem
	Settled     bool
	SettledAt   *time.Time
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FindItem returns the index of the line item for productID, or -1.
func (c *Cart) FindItem(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// RecalculateTotal recomputes TotalAmount from the current line items.
func (c *Cart) RecalculateTotal() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalAmount = total
}
