package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podomall/podomall/internal/models"
)

var (
	ErrNotFound                = errors.New("record not found")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrDuplicateOrder          = errors.New("order already exists")
)

const uniqueViolation = "23505"

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `id, order_number, user_id, subtotal, discount_amount, shipping_amount,
	total_amount, coupon_id, payment_key, payment_method, paid_amount,
	customer_name, customer_email, shipping_address, billing_address,
	address_flagged, status, notes, created_at, paid_at, shipped_at, delivered_at`

// Create persists the order and its item snapshots in one transaction. When
// the order uses a coupon, both the holder's counter and the coupon's global
// counter advance inside the same transaction. A unique violation on
// order_number or payment_key means the payment was already recorded and is
// reported as ErrDuplicateOrder.
func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	shippingJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return err
	}
	billingJSON, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO orders (
			order_number, user_id, subtotal, discount_amount, shipping_amount,
			total_amount, coupon_id, payment_key, payment_method, paid_amount,
			customer_name, customer_email, shipping_address, billing_address,
			address_flagged, status, notes, paid_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())
		RETURNING id, created_at, paid_at`,
		order.OrderNumber, order.UserID, order.Subtotal, order.DiscountAmount,
		order.ShippingAmount, order.TotalAmount, order.CouponID, order.PaymentKey,
		order.PaymentMethod, order.PaidAmount, order.CustomerName, order.CustomerEmail,
		shippingJSON, billingJSON, order.AddressFlagged, string(order.Status), order.Notes,
	)
	if err := row.Scan(&order.ID, &order.CreatedAt, &order.PaidAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateOrder, pgErr.ConstraintName)
		}
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, vendor_id, product_name, sku, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			item.OrderID, item.ProductID, item.VendorID, item.ProductName,
			item.SKU, item.Quantity, item.UnitPrice, item.TotalPrice,
		).Scan(&item.ID)
		if err != nil {
			return err
		}
	}

	if order.CouponID != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE user_coupons SET use_count = use_count + 1
			WHERE user_id = $1 AND coupon_id = $2`,
			order.UserID, *order.CouponID,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE coupons SET use_count = use_count + 1 WHERE id = $1`,
			*order.CouponID,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) GetByPaymentKey(ctx context.Context, paymentKey string) (*models.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_key = $1`, paymentKey)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		if err := s.loadItems(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// OrderFilter narrows the admin order listing. Zero values mean "no filter".
type OrderFilter struct {
	Status   models.OrderStatus
	VendorID *uuid.UUID
	Search   string
	Page     int
	Limit    int
}

// List returns one page of orders plus the unpaginated match count.
func (s *OrderStore) List(ctx context.Context, filter OrderFilter) ([]*models.Order, int, error) {
	var conds []string
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.VendorID != nil {
		args = append(args, *filter.VendorID)
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = orders.id AND i.vendor_id = $%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf(
			"(order_number ILIKE $%d OR shipping_address->>'receiver_name' ILIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	for _, order := range orders {
		if err := s.loadItems(ctx, order); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

// FindShippableByReceiver returns orders whose shipping snapshot matches
// the receiver name and phone exactly, oldest first. Shipped orders are
// included so a re-uploaded batch can re-confirm its earlier allocations.
// Address text is matched by the caller, which also decides between exact
// and containment matching.
func (s *OrderStore) FindShippableByReceiver(ctx context.Context, name, phone string) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status IN ('paid', 'preparing', 'shipped')
		  AND shipping_address->>'receiver_name' = $1
		  AND shipping_address->>'receiver_phone' = $2
		ORDER BY created_at ASC`,
		name, phone)
	if err != nil {
		return nil, err
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		if err := s.loadItems(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *OrderStore) MarkPreparing(ctx context.Context, orderID uuid.UUID) error {
	return s.transition(ctx, orderID,
		`UPDATE orders SET status = 'preparing' WHERE id = $1 AND status IN ('paid', 'preparing')`,
		"paid/preparing")
}

func (s *OrderStore) MarkShipped(ctx context.Context, orderID uuid.UUID) error {
	return s.transition(ctx, orderID,
		`UPDATE orders SET status = 'shipped', shipped_at = NOW() WHERE id = $1 AND status IN ('paid', 'preparing')`,
		"paid/preparing")
}

func (s *OrderStore) MarkDelivered(ctx context.Context, orderID uuid.UUID) error {
	return s.transition(ctx, orderID,
		`UPDATE orders SET status = 'delivered', delivered_at = NOW() WHERE id = $1 AND status = 'shipped'`,
		"shipped")
}

func (s *OrderStore) MarkCancelled(ctx context.Context, orderID uuid.UUID) error {
	return s.transition(ctx, orderID,
		`UPDATE orders SET status = 'cancelled' WHERE id = $1 AND status IN ('pending', 'paid')`,
		"pending/paid")
}

func (s *OrderStore) MarkRefunded(ctx context.Context, orderID uuid.UUID) error {
	return s.transition(ctx, orderID,
		`UPDATE orders SET status = 'refunded' WHERE id = $1 AND status IN ('paid', 'preparing', 'cancelled')`,
		"paid/preparing/cancelled")
}

func (s *OrderStore) transition(ctx context.Context, orderID uuid.UUID, query, expected string) error {
	cmdTag, err := s.pool.Exec(ctx, query, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected %s", ErrInvalidStatusTransition, expected)
	}
	return nil
}

func (s *OrderStore) loadItems(ctx context.Context, order *models.Order) error {
	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.order_id, i.product_id, i.vendor_id, i.product_name, i.sku,
		       i.quantity, i.unit_price, i.total_price, COALESCE(SUM(d.quantity), 0)
		FROM order_items i
		LEFT JOIN deliveries d ON d.order_item_id = i.id
		WHERE i.order_id = $1
		GROUP BY i.id
		ORDER BY i.product_name, i.id`,
		order.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	order.Items = order.Items[:0]
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VendorID,
			&item.ProductName, &item.SKU, &item.Quantity, &item.UnitPrice,
			&item.TotalPrice, &item.ShippedQuantity); err != nil {
			return err
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

func collectOrders(rows pgx.Rows) ([]*models.Order, error) {
	defer rows.Close()
	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		order        models.Order
		couponID     pgtype.UUID
		shippingJSON []byte
		billingJSON  []byte
		paidAt       pgtype.Timestamptz
		shippedAt    pgtype.Timestamptz
		deliveredAt  pgtype.Timestamptz
	)
	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &order.Subtotal,
		&order.DiscountAmount, &order.ShippingAmount, &order.TotalAmount,
		&couponID, &order.PaymentKey, &order.PaymentMethod, &order.PaidAmount,
		&order.CustomerName, &order.CustomerEmail, &shippingJSON, &billingJSON,
		&order.AddressFlagged, &order.Status, &order.Notes, &order.CreatedAt,
		&paidAt, &shippedAt, &deliveredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if couponID.Valid {
		id := uuid.UUID(couponID.Bytes)
		order.CouponID = &id
	}
	if paidAt.Valid {
		order.PaidAt = paidAt.Time
	}
	if shippedAt.Valid {
		order.ShippedAt = shippedAt.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = deliveredAt.Time
	}
	if err := json.Unmarshal(shippingJSON, &order.ShippingAddress); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(billingJSON, &order.BillingAddress); err != nil {
		return nil, err
	}
	return &order, nil
}
