package models

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID            uuid.UUID `json:"id"`
	VendorID      uuid.UUID `json:"vendor_id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	PriceB2C      int       `json:"price_b2c"`
	StockQuantity int       `json:"stock_quantity"`
	ImageURL      string    `json:"image_url"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

type Vendor struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	ContactEmail      string    `json:"contact_email"`
	SettlementAccount string    `json:"settlement_account,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
