package models

import (
	"time"

	"github.com/google/uuid"
)

type DiscountType string

const (
	DiscountPercentage   DiscountType = "PERCENTAGE"
	DiscountFixedAmount  DiscountType = "FIXED_AMOUNT"
	DiscountFreeShipping DiscountType = "FREE_SHIPPING"
)

// Coupon is a durable promotional rule. MinAmount gates qualification on the
// order subtotal; MaxAmount caps percentage discounts.
type Coupon struct {
	ID            uuid.UUID    `json:"id"`
	Code          string       `json:"code"`
	Name          string       `json:"name"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue int          `json:"discount_value"`
	MinAmount     *int         `json:"min_amount,omitempty"`
	MaxAmount     *int         `json:"max_amount,omitempty"`
	MaxUses       *int         `json:"max_uses,omitempty"`
	UserMaxUses   *int         `json:"user_max_uses,omitempty"`
	UseCount      int          `json:"use_count"`
	StartsAt      *time.Time   `json:"starts_at,omitempty"`
	EndsAt        *time.Time   `json:"ends_at,omitempty"`
	IsActive      bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
}

// ActiveAt reports whether the coupon can be applied at the given instant,
// ignoring subtotal and usage constraints.
func (c *Coupon) ActiveAt(now time.Time) bool {
	if c == nil || !c.IsActive {
		return false
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return false
	}
	return true
}

// Exhausted reports whether the global usage cap has been reached.
func (c *Coupon) Exhausted() bool {
	return c.MaxUses != nil && c.UseCount >= *c.MaxUses
}

// UserCoupon associates a coupon with a user plus that user's usage counter.
// UseCount is incremented exactly once per completed order referencing the
// coupon, inside the order-create transaction.
type UserCoupon struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CouponID  uuid.UUID `json:"coupon_id"`
	Coupon    *Coupon   `json:"coupon,omitempty"`
	UseCount  int       `json:"use_count"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// Usable reports whether the holder can still redeem this coupon.
func (uc *UserCoupon) Usable() bool {
	if uc == nil || uc.Coupon == nil {
		return false
	}
	if uc.Coupon.Exhausted() {
		return false
	}
	if uc.Coupon.UserMaxUses != nil && uc.UseCount >= *uc.Coupon.UserMaxUses {
		return false
	}
	return true
}
