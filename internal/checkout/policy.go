package checkout

// Package checkout provides the shop policy and server-authoritative price
// calculation for carts, coupons, and shipping.

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the deploy-time shop policy loaded from YAML. Zero values fall
// back to the storefront defaults.
type Policy struct {
	Shop     ShopPolicy     `yaml:"shop"`
	Shipping ShippingPolicy `yaml:"shipping"`
}

type ShopPolicy struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
}

type ShippingPolicy struct {
	// FreeThreshold is the subtotal at or above which shipping is free.
	FreeThreshold int `yaml:"free_threshold"`
	// BaseFee is the flat shipping fee below the threshold.
	BaseFee int `yaml:"base_fee"`
}

const (
	defaultFreeShippingThreshold = 50_000
	defaultShippingFee           = 3_000
	defaultCurrency              = "KRW"
)

func DefaultPolicy() Policy {
	return Policy{
		Shop: ShopPolicy{Name: "podomall", Currency: defaultCurrency},
		Shipping: ShippingPolicy{
			FreeThreshold: defaultFreeShippingThreshold,
			BaseFee:       defaultShippingFee,
		},
	}
}

// LoadPolicy reads the policy file at path; an empty path yields defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("failed to read shop policy: %w", err)
	}
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return policy, fmt.Errorf("failed to parse shop policy: %w", err)
	}
	if err := policy.validate(); err != nil {
		return policy, err
	}
	return policy, nil
}

func (p Policy) validate() error {
	if p.Shop.Name == "" {
		return fmt.Errorf("shop policy: shop.name is required")
	}
	if p.Shipping.FreeThreshold < 0 {
		return fmt.Errorf("shop policy: shipping.free_threshold must not be negative")
	}
	if p.Shipping.BaseFee < 0 {
		return fmt.Errorf("shop policy: shipping.base_fee must not be negative")
	}
	return nil
}
