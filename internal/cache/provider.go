// Package cache provides short-lived key/value storage for payment
// idempotency markers and the checkout coupon handoff stash.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("key not found")

// Provider is the contract shared by the memory and redis backends.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// PaymentMarkerKey identifies the best-effort "already reconciled" marker for
// a given client-generated order number.
func PaymentMarkerKey(orderNumber string) string {
	return fmt.Sprintf("payment:processed:%s", orderNumber)
}

// CouponStashKey identifies the coupon handoff stashed between checkout start
// and the payment-success redirect. Consumed on read.
func CouponStashKey(orderNumber string) string {
	return fmt.Sprintf("checkout:coupon:%s", orderNumber)
}
