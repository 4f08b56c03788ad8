package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podomall/podomall/internal/models"
)

var (
	ErrOverAllocation    = errors.New("delivery quantity exceeds remaining item quantity")
	ErrDuplicateDelivery = errors.New("identical delivery already recorded for this item")
)

type DeliveryStore struct {
	pool *pgxpool.Pool
}

func NewDeliveryStore(pool *pgxpool.Pool) *DeliveryStore {
	return &DeliveryStore{pool: pool}
}

// Create inserts a delivery only when the item still has at least the
// requested quantity unshipped. The check and the insert run in one
// statement so concurrent uploads cannot over-allocate an item. An
// identical (item, courier, tracking number, quantity) row is rejected
// with ErrDuplicateDelivery so re-uploaded workbooks stay idempotent.
func (s *DeliveryStore) Create(ctx context.Context, delivery *models.Delivery) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO deliveries (order_id, order_item_id, courier, tracking_number, tracking_url, quantity)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE (
			SELECT i.quantity - COALESCE((SELECT SUM(d.quantity) FROM deliveries d WHERE d.order_item_id = $2), 0)
			FROM order_items i WHERE i.id = $2
		) >= $6
		ON CONFLICT (order_item_id, courier, tracking_number, quantity) DO NOTHING
		RETURNING id, created_at`,
		delivery.OrderID, delivery.OrderItemID, delivery.Courier,
		delivery.TrackingNumber, delivery.TrackingURL, delivery.Quantity,
	).Scan(&delivery.ID, &delivery.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		checkErr := s.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM deliveries
				WHERE order_item_id = $1 AND courier = $2 AND tracking_number = $3 AND quantity = $4
			)`,
			delivery.OrderItemID, delivery.Courier, delivery.TrackingNumber, delivery.Quantity,
		).Scan(&exists)
		if checkErr != nil {
			return checkErr
		}
		if exists {
			return ErrDuplicateDelivery
		}
		return ErrOverAllocation
	}
	return err
}

// AllocatedForTracking returns the quantity already recorded for one order
// item under a given courier and tracking number.
func (s *DeliveryStore) AllocatedForTracking(ctx context.Context, orderItemID uuid.UUID, courier, trackingNumber string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM deliveries
		WHERE order_item_id = $1 AND courier = $2 AND tracking_number = $3`,
		orderItemID, courier, trackingNumber).Scan(&total)
	return total, err
}

// ShippedQuantity returns the total quantity already allocated to deliveries
// for one order item.
func (s *DeliveryStore) ShippedQuantity(ctx context.Context, orderItemID uuid.UUID) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM deliveries WHERE order_item_id = $1`,
		orderItemID).Scan(&total)
	return total, err
}

func (s *DeliveryStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Delivery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, order_item_id, courier, tracking_number, tracking_url, quantity, created_at
		FROM deliveries WHERE order_id = $1 ORDER BY created_at ASC`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*models.Delivery
	for rows.Next() {
		var d models.Delivery
		if err := rows.Scan(&d.ID, &d.OrderID, &d.OrderItemID, &d.Courier,
			&d.TrackingNumber, &d.TrackingURL, &d.Quantity, &d.CreatedAt); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, &d)
	}
	return deliveries, rows.Err()
}
