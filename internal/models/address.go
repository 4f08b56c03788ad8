package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a user's saved shipping address.
type Address struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Label         string    `json:"label"`
	ReceiverName  string    `json:"receiver_name"`
	ReceiverPhone string    `json:"receiver_phone"`
	PostalCode    string    `json:"postal_code"`
	BaseAddress   string    `json:"base_address"`
	DetailAddress string    `json:"detail_address"`
	IsDefault     bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
}

// Snapshot freezes the address onto an order.
func (a *Address) Snapshot() AddressSnapshot {
	if a == nil {
		return AddressSnapshot{}
	}
	return AddressSnapshot{
		ReceiverName:  a.ReceiverName,
		ReceiverPhone: a.ReceiverPhone,
		PostalCode:    a.PostalCode,
		BaseAddress:   a.BaseAddress,
		DetailAddress: a.DetailAddress,
	}
}
