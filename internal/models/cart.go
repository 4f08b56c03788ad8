package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is a session-scoped set of product/quantity pairs with a denormalized
// product snapshot for display and discount math. It is cleared once an
// order has been durably created from it.
type Cart struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Product   *Product  `json:"product,omitempty"`
}

// Subtotal sums unit price times quantity over every line with a product
// snapshot attached.
func (c *Cart) Subtotal() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, item := range c.Items {
		if item.Product == nil {
			continue
		}
		total += item.Product.PriceB2C * item.Quantity
	}
	return total
}

// IsEmpty reports whether there is nothing to check out.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}
