// Package symkeys stores wrapped per-file AES keys.
package symkeys

import (
	"context"
	"fmt"

	"github.com/whistledrop/whistledrop/internal/dbx"
	"github.com/whistledrop/whistledrop/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, key *models.SymmetricKey) (*models.SymmetricKey, error) {
	query := `INSERT INTO symmetrical_keys (public_key_id, nonce, key)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, key.PublicKeyID, key.Nonce, key.WrappedKey).Scan(&key.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return key, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM symmetrical_keys WHERE id=$1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
