package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podomall/podomall/internal/crypto"
	"github.com/podomall/podomall/internal/models"
)

// VendorStore keeps settlement account numbers encrypted at rest.
type VendorStore struct {
	pool      *pgxpool.Pool
	encryptor crypto.Encryptor
}

func NewVendorStore(pool *pgxpool.Pool, encryptor crypto.Encryptor) *VendorStore {
	return &VendorStore{pool: pool, encryptor: encryptor}
}

func (s *VendorStore) Create(ctx context.Context, vendor *models.Vendor) error {
	account, err := s.encryptor.Encrypt(vendor.SettlementAccount)
	if err != nil {
		return err
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO vendors (name, contact_email, settlement_account)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		vendor.Name, vendor.ContactEmail, account,
	).Scan(&vendor.ID, &vendor.CreatedAt)
}

func (s *VendorStore) GetByID(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, contact_email, settlement_account, created_at FROM vendors WHERE id = $1`,
		vendorID)
	return s.scanVendor(row)
}

func (s *VendorStore) List(ctx context.Context) ([]*models.Vendor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, contact_email, settlement_account, created_at FROM vendors ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []*models.Vendor
	for rows.Next() {
		vendor, err := s.scanVendor(rows)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, vendor)
	}
	return vendors, rows.Err()
}

func (s *VendorStore) scanVendor(row pgx.Row) (*models.Vendor, error) {
	var (
		vendor  models.Vendor
		account string
	)
	err := row.Scan(&vendor.ID, &vendor.Name, &vendor.ContactEmail, &account, &vendor.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if account != "" {
		vendor.SettlementAccount, err = s.encryptor.Decrypt(account)
		if err != nil {
			return nil, err
		}
	}
	return &vendor, nil
}
