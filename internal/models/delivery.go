package models

import (
	"time"

	"github.com/google/uuid"
)

// Delivery links a carrier tracking number to a specific order item and a
// quantity no larger than that item's remaining unshipped quantity. An item
// may carry several deliveries (partial shipments), and one uploaded
// shipment row may produce deliveries across several orders.
type Delivery struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	OrderItemID    uuid.UUID `json:"order_item_id"`
	Courier        string    `json:"courier"`
	TrackingNumber string    `json:"tracking_number"`
	TrackingURL    string    `json:"tracking_url"`
	Quantity       int       `json:"quantity"`
	CreatedAt      time.Time `json:"created_at"`
}
