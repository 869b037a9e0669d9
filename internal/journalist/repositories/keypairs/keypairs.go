// Package keypairs stores the journalist's RSA key pairs. The private half
// never leaves this table; the public half is published once and then
// flagged as uploaded.
package keypairs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/dbx"
)

type KeyPair struct {
	ID         string
	PublicKey  string
	PrivateKey string
	Uploaded   bool
	CreatedAt  time.Time
}

type Repository interface {
	Insert(ctx context.Context, kp *KeyPair) error
	GetByID(ctx context.Context, id string) (*KeyPair, error)
	ListUnuploaded(ctx context.Context) ([]*KeyPair, error)
	MarkUploaded(ctx context.Context, id string) error
	Count(ctx context.Context) (total int64, uploaded int64, err error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, kp *KeyPair) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO keypairs (id, public_key, private_key, uploaded) VALUES (?, ?, ?, ?)`,
		kp.ID, kp.PublicKey, kp.PrivateKey, kp.Uploaded)
	if err != nil {
		return fmt.Errorf("failed to insert key pair %s: %w", kp.ID, err)
	}
	return nil
}

// GetByID returns common.ErrorNotFound when no pair has that id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*KeyPair, error) {
	kp := &KeyPair{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, public_key, private_key, uploaded, created_at FROM keypairs WHERE id = ?`, id).
		Scan(&kp.ID, &kp.PublicKey, &kp.PrivateKey, &kp.Uploaded, &kp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key pair %s: %w", id, err)
	}
	return kp, nil
}

// ListUnuploaded returns pairs whose public key has not been published yet,
// oldest first.
func (r *SQLiteRepository) ListUnuploaded(ctx context.Context) ([]*KeyPair, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, public_key, private_key, uploaded, created_at
		FROM keypairs WHERE uploaded = 0
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list key pairs: %w", err)
	}
	defer rows.Close()

	var out []*KeyPair
	for rows.Next() {
		kp := &KeyPair{}
		if err := rows.Scan(&kp.ID, &kp.PublicKey, &kp.PrivateKey, &kp.Uploaded, &kp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan key pair: %w", err)
		}
		out = append(out, kp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate key pairs: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkUploaded(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE keypairs SET uploaded = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark key pair %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark key pair %s: %w", id, err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, int64, error) {
	var total, uploaded int64
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*), coalesce(sum(uploaded), 0) FROM keypairs`).Scan(&total, &uploaded)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count key pairs: %w", err)
	}
	return total, uploaded, nil
}
