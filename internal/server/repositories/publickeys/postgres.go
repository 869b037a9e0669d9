// Package publickeys stores the journalists' one-time RSA public keys.
package publickeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/dbx"
	"github.com/whistledrop/whistledrop/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create stores a new active key under the journalist-chosen ID. A duplicate
// ID yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, key *models.PublicKey) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO public_keys (id, active, key) VALUES ($1, true, $2)`,
		key.ID, key.PEM)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	key.Active = true
	return nil
}

// ClaimActive atomically deactivates one active key and returns it, so no
// key is ever handed out twice. common.ErrNoPublicKey means none are left.
func (r *PostgresRepository) ClaimActive(ctx context.Context) (*models.PublicKey, error) {
	query := `
		UPDATE public_keys SET active = false
		WHERE id = (
			SELECT id FROM public_keys WHERE active
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, key
	`
	key := &models.PublicKey{}
	if err := r.db.QueryRowContext(ctx, query).Scan(&key.ID, &key.PEM); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNoPublicKey
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return key, nil
}

func (r *PostgresRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM public_keys WHERE active`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
