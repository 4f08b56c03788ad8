package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/podomall/podomall/internal/db"
	"github.com/podomall/podomall/internal/logging"
	"github.com/podomall/podomall/internal/models"
)

var (
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrCouponInactive  = errors.New("coupon is not active")
	ErrCouponExhausted = errors.New("coupon has no uses left")
)

type couponStore interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	Claim(ctx context.Context, userID, couponID uuid.UUID) (*models.UserCoupon, error)
	ListUserCoupons(ctx context.Context, userID uuid.UUID) ([]*models.UserCoupon, error)
}

type CouponService struct {
	store  couponStore
	logger *slog.Logger
}

func NewCouponService(store couponStore, logger *slog.Logger) *CouponService {
	return &CouponService{store: store, logger: logger}
}

// Claim registers a coupon code to the user after checking the coupon's
// window and global usage cap. Claiming the same coupon twice surfaces
// db.ErrCouponAlreadyClaimed untouched.
func (s *CouponService) Claim(ctx context.Context, userID uuid.UUID, code string) (*models.UserCoupon, error) {
	coupon, err := s.store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("loading coupon: %w", err)
	}
	if !coupon.ActiveAt(time.Now()) {
		return nil, ErrCouponInactive
	}
	if coupon.Exhausted() {
		return nil, ErrCouponExhausted
	}

	userCoupon, err := s.store.Claim(ctx, userID, coupon.ID)
	if err != nil {
		return nil, err
	}
	userCoupon.Coupon = coupon

	logging.FromContext(ctx, s.logger).Info("coupon claimed",
		"user_id", userID, "coupon_code", coupon.Code)
	return userCoupon, nil
}

// ListMine returns the user's claims annotated with current usability.
func (s *CouponService) ListMine(ctx context.Context, userID uuid.UUID) ([]*models.UserCoupon, error) {
	return s.store.ListUserCoupons(ctx, userID)
}
