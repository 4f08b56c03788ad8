package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podomall/podomall/internal/models"
)

type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

const productColumns = `id, vendor_id, sku, name, price_b2c, stock_quantity, image_url, is_active, created_at`

func (s *ProductStore) Create(ctx context.Context, product *models.Product) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (vendor_id, sku, name, price_b2c, stock_quantity, image_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		product.VendorID, product.SKU, product.Name, product.PriceB2C,
		product.StockQuantity, product.ImageURL, product.IsActive,
	).Scan(&product.ID, &product.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("sku %q already exists", product.SKU)
		}
		return err
	}
	return nil
}

func (s *ProductStore) GetByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	return scanProduct(row)
}

func (s *ProductStore) ListActive(ctx context.Context) ([]*models.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *ProductStore) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]*models.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE vendor_id = $1 ORDER BY created_at DESC`,
		vendorID)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

// DecrementStock reserves stock for a purchase. Selling below zero is
// rejected by leaving the row untouched.
func (s *ProductStore) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE products SET stock_quantity = stock_quantity - $2
		WHERE id = $1 AND stock_quantity >= $2`,
		productID, quantity)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("insufficient stock for product %s", productID)
	}
	return nil
}

func collectProducts(rows pgx.Rows) ([]*models.Product, error) {
	defer rows.Close()
	var products []*models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var product models.Product
	err := row.Scan(
		&product.ID, &product.VendorID, &product.SKU, &product.Name,
		&product.PriceB2C, &product.StockQuantity, &product.ImageURL,
		&product.IsActive, &product.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}
