package checkout

import (
	"github.com/podomall/podomall/internal/models"
)

// Pricer computes discounts and shipping fees under a shop policy. All
// methods are pure; they are safe to call for client preview and are called
// again server-side at order-creation time as the authoritative computation.
type Pricer struct {
	policy Policy
}

func NewPricer(policy Policy) *Pricer {
	return &Pricer{policy: policy}
}

// CalculateDiscount returns the coupon's discount against the subtotal.
// A nil coupon or an unmet minimum yields 0; use QualifiesMinAmount to tell
// a non-qualifying coupon apart from a genuine zero. For PERCENTAGE and
// FIXED_AMOUNT the result is always within [0, subtotal]. FREE_SHIPPING
// never reduces the subtotal; its effect lands on the shipping component.
func (p *Pricer) CalculateDiscount(coupon *models.Coupon, subtotal int) int {
	if coupon == nil || subtotal <= 0 {
		return 0
	}
	if !p.QualifiesMinAmount(coupon, subtotal) {
		return 0
	}

	switch coupon.DiscountType {
	case models.DiscountPercentage:
		discount := subtotal * coupon.DiscountValue / 100
		if coupon.MaxAmount != nil && discount > *coupon.MaxAmount {
			discount = *coupon.MaxAmount
		}
		if discount > subtotal {
			discount = subtotal
		}
		if discount < 0 {
			discount = 0
		}
		return discount
	case models.DiscountFixedAmount:
		discount := coupon.DiscountValue
		if discount > subtotal {
			discount = subtotal
		}
		if discount < 0 {
			discount = 0
		}
		return discount
	case models.DiscountFreeShipping:
		return 0
	default:
		return 0
	}
}

// QualifiesMinAmount reports whether the subtotal meets the coupon's minimum
// order amount.
func (p *Pricer) QualifiesMinAmount(coupon *models.Coupon, subtotal int) bool {
	if coupon == nil {
		return false
	}
	return coupon.MinAmount == nil || subtotal >= *coupon.MinAmount
}

// ShippingFee returns the shipping charge for a subtotal: free at or above
// the policy threshold, the flat base fee below it.
func (p *Pricer) ShippingFee(subtotal int) int {
	if subtotal >= p.policy.Shipping.FreeThreshold {
		return 0
	}
	return p.policy.Shipping.BaseFee
}

// ShippingAfterCoupon applies a FREE_SHIPPING coupon to the shipping fee.
func (p *Pricer) ShippingAfterCoupon(coupon *models.Coupon, subtotal int) int {
	fee := p.ShippingFee(subtotal)
	if coupon != nil && coupon.DiscountType == models.DiscountFreeShipping && p.QualifiesMinAmount(coupon, subtotal) {
		return 0
	}
	return fee
}

// Quote is the server-authoritative amount breakdown for a checkout.
type Quote struct {
	Subtotal       int `json:"subtotal"`
	DiscountAmount int `json:"discount_amount"`
	ShippingAmount int `json:"shipping_amount"`
	TotalAmount    int `json:"total_amount"`
}

// QuoteOrder prices a subtotal with an optional coupon. The invariant
// Total == Subtotal + Shipping - Discount holds by construction.
func (p *Pricer) QuoteOrder(coupon *models.Coupon, subtotal int) Quote {
	discount := p.CalculateDiscount(coupon, subtotal)
	shipping := p.ShippingAfterCoupon(coupon, subtotal)
	return Quote{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		ShippingAmount: shipping,
		TotalAmount:    subtotal + shipping - discount,
	}
}
