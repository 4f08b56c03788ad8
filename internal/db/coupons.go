package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podomall/podomall/internal/models"
)

var ErrCouponAlreadyClaimed = errors.New("coupon already claimed")

type CouponStore struct {
	pool *pgxpool.Pool
}

func NewCouponStore(pool *pgxpool.Pool) *CouponStore {
	return &CouponStore{pool: pool}
}

const couponColumns = `id, code, name, discount_type, discount_value, min_amount, max_amount,
	max_uses, user_max_uses, use_count, starts_at, ends_at, is_active, created_at`

func (s *CouponStore) Create(ctx context.Context, coupon *models.Coupon) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO coupons (code, name, discount_type, discount_value, min_amount,
			max_amount, max_uses, user_max_uses, starts_at, ends_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		coupon.Code, coupon.Name, string(coupon.DiscountType), coupon.DiscountValue,
		coupon.MinAmount, coupon.MaxAmount, coupon.MaxUses, coupon.UserMaxUses,
		coupon.StartsAt, coupon.EndsAt, coupon.IsActive,
	).Scan(&coupon.ID, &coupon.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("coupon code %q already exists", coupon.Code)
		}
		return err
	}
	return nil
}

func (s *CouponStore) GetByID(ctx context.Context, couponID uuid.UUID) (*models.Coupon, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE id = $1`, couponID)
	return scanCoupon(row)
}

func (s *CouponStore) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
	return scanCoupon(row)
}

func (s *CouponStore) ListActive(ctx context.Context) ([]*models.Coupon, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+couponColumns+` FROM coupons
		WHERE is_active
		  AND (starts_at IS NULL OR starts_at <= NOW())
		  AND (ends_at IS NULL OR ends_at >= NOW())
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectCoupons(rows)
}

func (s *CouponStore) List(ctx context.Context) ([]*models.Coupon, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectCoupons(rows)
}

func (s *CouponStore) SetActive(ctx context.Context, couponID uuid.UUID, active bool) error {
	cmdTag, err := s.pool.Exec(ctx,
		`UPDATE coupons SET is_active = $2 WHERE id = $1`, couponID, active)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim registers the coupon to the user. Claiming twice is reported as
// ErrCouponAlreadyClaimed via the (user_id, coupon_id) unique constraint.
func (s *CouponStore) Claim(ctx context.Context, userID, couponID uuid.UUID) (*models.UserCoupon, error) {
	uc := &models.UserCoupon{UserID: userID, CouponID: couponID}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO user_coupons (user_id, coupon_id)
		VALUES ($1, $2)
		RETURNING id, claimed_at`,
		userID, couponID,
	).Scan(&uc.ID, &uc.ClaimedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrCouponAlreadyClaimed
		}
		return nil, err
	}
	return uc, nil
}

// GetUserCoupon loads a user's claim on a coupon with the coupon joined in.
func (s *CouponStore) GetUserCoupon(ctx context.Context, userID, couponID uuid.UUID) (*models.UserCoupon, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT uc.id, uc.user_id, uc.coupon_id, uc.use_count, uc.claimed_at,
		       c.id, c.code, c.name, c.discount_type, c.discount_value, c.min_amount,
		       c.max_amount, c.max_uses, c.user_max_uses, c.use_count, c.starts_at,
		       c.ends_at, c.is_active, c.created_at
		FROM user_coupons uc
		JOIN coupons c ON c.id = uc.coupon_id
		WHERE uc.user_id = $1 AND uc.coupon_id = $2`,
		userID, couponID)
	return scanUserCoupon(row)
}

// GetUserCouponByCode is the coupon-code variant used when only the code
// survived the payment round trip.
func (s *CouponStore) GetUserCouponByCode(ctx context.Context, userID uuid.UUID, code string) (*models.UserCoupon, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT uc.id, uc.user_id, uc.coupon_id, uc.use_count, uc.claimed_at,
		       c.id, c.code, c.name, c.discount_type, c.discount_value, c.min_amount,
		       c.max_amount, c.max_uses, c.user_max_uses, c.use_count, c.starts_at,
		       c.ends_at, c.is_active, c.created_at
		FROM user_coupons uc
		JOIN coupons c ON c.id = uc.coupon_id
		WHERE uc.user_id = $1 AND c.code = $2`,
		userID, code)
	return scanUserCoupon(row)
}

func (s *CouponStore) ListUserCoupons(ctx context.Context, userID uuid.UUID) ([]*models.UserCoupon, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT uc.id, uc.user_id, uc.coupon_id, uc.use_count, uc.claimed_at,
		       c.id, c.code, c.name, c.discount_type, c.discount_value, c.min_amount,
		       c.max_amount, c.max_uses, c.user_max_uses, c.use_count, c.starts_at,
		       c.ends_at, c.is_active, c.created_at
		FROM user_coupons uc
		JOIN coupons c ON c.id = uc.coupon_id
		WHERE uc.user_id = $1
		ORDER BY uc.claimed_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coupons []*models.UserCoupon
	for rows.Next() {
		uc, err := scanUserCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, uc)
	}
	return coupons, rows.Err()
}

func collectCoupons(rows pgx.Rows) ([]*models.Coupon, error) {
	defer rows.Close()
	var coupons []*models.Coupon
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, coupon)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return coupons, nil
}

func scanCoupon(row pgx.Row) (*models.Coupon, error) {
	var (
		coupon   models.Coupon
		startsAt pgtype.Timestamptz
		endsAt   pgtype.Timestamptz
	)
	err := row.Scan(
		&coupon.ID, &coupon.Code, &coupon.Name, &coupon.DiscountType,
		&coupon.DiscountValue, &coupon.MinAmount, &coupon.MaxAmount,
		&coupon.MaxUses, &coupon.UserMaxUses, &coupon.UseCount,
		&startsAt, &endsAt, &coupon.IsActive, &coupon.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if startsAt.Valid {
		coupon.StartsAt = &startsAt.Time
	}
	if endsAt.Valid {
		coupon.EndsAt = &endsAt.Time
	}
	return &coupon, nil
}

func scanUserCoupon(row pgx.Row) (*models.UserCoupon, error) {
	var (
		uc       models.UserCoupon
		coupon   models.Coupon
		startsAt pgtype.Timestamptz
		endsAt   pgtype.Timestamptz
	)
	err := row.Scan(
		&uc.ID, &uc.UserID, &uc.CouponID, &uc.UseCount, &uc.ClaimedAt,
		&coupon.ID, &coupon.Code, &coupon.Name, &coupon.DiscountType,
		&coupon.DiscountValue, &coupon.MinAmount, &coupon.MaxAmount,
		&coupon.MaxUses, &coupon.UserMaxUses, &coupon.UseCount,
		&startsAt, &endsAt, &coupon.IsActive, &coupon.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if startsAt.Valid {
		coupon.StartsAt = &startsAt.Time
	}
	if endsAt.Valid {
		coupon.EndsAt = &endsAt.Time
	}
	uc.Coupon = &coupon
	return &uc, nil
}
