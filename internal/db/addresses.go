package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podomall/podomall/internal/models"
)

type AddressStore struct {
	pool *pgxpool.Pool
}

func NewAddressStore(pool *pgxpool.Pool) *AddressStore {
	return &AddressStore{pool: pool}
}

const addressColumns = `id, user_id, label, receiver_name, receiver_phone, postal_code,
	base_address, detail_address, is_default, created_at`

// Create inserts the address. Marking it default demotes any previous
// default in the same transaction so a user never has two.
func (s *AddressStore) Create(ctx context.Context, address *models.Address) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if address.IsDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`,
			address.UserID); err != nil {
			return err
		}
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO addresses (user_id, label, receiver_name, receiver_phone, postal_code,
			base_address, detail_address, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		address.UserID, address.Label, address.ReceiverName, address.ReceiverPhone,
		address.PostalCode, address.BaseAddress, address.DetailAddress, address.IsDefault,
	).Scan(&address.ID, &address.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *AddressStore) GetByID(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`,
		addressID, userID)
	return scanAddress(row)
}

// GetDefault returns the user's default address, falling back to the most
// recently created one when no default is set.
func (s *AddressStore) GetDefault(ctx context.Context, userID uuid.UUID) (*models.Address, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+addressColumns+` FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC
		LIMIT 1`,
		userID)
	return scanAddress(row)
}

func (s *AddressStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Address, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addresses []*models.Address
	for rows.Next() {
		address, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, address)
	}
	return addresses, rows.Err()
}

func (s *AddressStore) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	cmdTag, err := s.pool.Exec(ctx,
		`DELETE FROM addresses WHERE id = $1 AND user_id = $2`, addressID, userID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAddress(row pgx.Row) (*models.Address, error) {
	var address models.Address
	err := row.Scan(
		&address.ID, &address.UserID, &address.Label, &address.ReceiverName,
		&address.ReceiverPhone, &address.PostalCode, &address.BaseAddress,
		&address.DetailAddress, &address.IsDefault, &address.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &address, nil
}
