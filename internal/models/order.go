package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusPreparing OrderStatus = "preparing"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
	StatusRefunded  OrderStatus = "refunded"
)

// Order is the durable record of a completed checkout. Items and addresses
// are snapshots taken at purchase time and are never re-derived from the
// current catalog state.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          uuid.UUID       `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	Subtotal        int             `json:"subtotal"`
	DiscountAmount  int             `json:"discount_amount"`
	ShippingAmount  int             `json:"shipping_amount"`
	TotalAmount     int             `json:"total_amount"`
	CouponID        *uuid.UUID      `json:"coupon_id,omitempty"`
	PaymentKey      string          `json:"payment_key"`
	PaymentMethod   string          `json:"payment_method"`
	PaidAmount      int             `json:"paid_amount"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	ShippingAddress AddressSnapshot `json:"shipping_address"`
	BillingAddress  AddressSnapshot `json:"billing_address"`
	AddressFlagged  bool            `json:"address_flagged"`
	Status          OrderStatus     `json:"status"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
	PaidAt          time.Time       `json:"paid_at"`
	ShippedAt       time.Time       `json:"shipped_at"`
	DeliveredAt     time.Time       `json:"delivered_at"`
}

// OrderItem is an immutable snapshot of a product at the time of purchase.
// ShippedQuantity is an aggregate over delivery allocations, not a column.
type OrderItem struct {
	ID              uuid.UUID `json:"id"`
	OrderID         uuid.UUID `json:"order_id"`
	ProductID       uuid.UUID `json:"product_id"`
	VendorID        uuid.UUID `json:"vendor_id"`
	ProductName     string    `json:"product_name"`
	SKU             string    `json:"sku"`
	Quantity        int       `json:"quantity"`
	UnitPrice       int       `json:"unit_price"`
	TotalPrice      int       `json:"total_price"`
	ShippedQuantity int       `json:"shipped_quantity"`
}

// AddressSnapshot is the address shape frozen onto an order.
type AddressSnapshot struct {
	ReceiverName  string `json:"receiver_name"`
	ReceiverPhone string `json:"receiver_phone"`
	PostalCode    string `json:"postal_code"`
	BaseAddress   string `json:"base_address"`
	DetailAddress string `json:"detail_address"`
}

// FullAddress joins base and detail the way carrier spreadsheets print them.
func (a AddressSnapshot) FullAddress() string {
	if a.DetailAddress == "" {
		return a.BaseAddress
	}
	return a.BaseAddress + " " + a.DetailAddress
}

// IsPlaceholder reports whether this snapshot is the degraded fallback used
// when no address could be resolved during reconciliation.
func (a AddressSnapshot) IsPlaceholder() bool {
	return a.ReceiverName == "" && a.BaseAddress == ""
}
