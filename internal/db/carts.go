package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podomall/podomall/internal/models"
)

type CartStore struct {
	pool *pgxpool.Pool
}

func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// Get returns the user's cart with product snapshots joined in. A user with
// no cart row gets an empty cart, not an error.
func (s *CartStore) Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart := &models.Cart{UserID: userID}

	rows, err := s.pool.Query(ctx, `
		SELECT ci.product_id, ci.quantity,
		       p.id, p.vendor_id, p.sku, p.name, p.price_b2c, p.stock_quantity,
		       p.image_url, p.is_active, p.created_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY p.name`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item    models.CartItem
			product models.Product
		)
		if err := rows.Scan(&item.ProductID, &item.Quantity,
			&product.ID, &product.VendorID, &product.SKU, &product.Name,
			&product.PriceB2C, &product.StockQuantity, &product.ImageURL,
			&product.IsActive, &product.CreatedAt); err != nil {
			return nil, err
		}
		item.Product = &product
		cart.Items = append(cart.Items, item)
	}
	return cart, rows.Err()
}

// SetItem upserts a line. Quantity zero or below removes the line.
func (s *CartStore) SetItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()`,
		userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		userID, productID, quantity); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *CartStore) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	return err
}

// Clear empties the cart after an order has been durably created from it.
func (s *CartStore) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}
