package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/dbx"
	"github.com/whistledrop/whistledrop/internal/server/models"
)

// PostgresRepository implements file metadata storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a file row and fills ID and CreatedAt from the database.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (user_id, symmetrical_key_id, storage_key, file_name, content_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, seen, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		file.UserID, file.SymmetricKeyID, file.StorageKey, file.FileName, file.ContentType).
		Scan(&file.ID, &file.Seen, &file.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// GetByID returns common.ErrorNotFound when no such file exists.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := ` SELECT id, user_id, symmetrical_key_id, storage_key, file_name, content_type, seen, created_at
		FROM files WHERE id=$1
		`
	f := &models.File{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&f.ID, &f.UserID, &f.SymmetricKeyID, &f.StorageKey, &f.FileName, &f.ContentType, &f.Seen, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// ListByUser returns the owner's files, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.File, error) {
	query := ` SELECT id, user_id, symmetrical_key_id, storage_key, file_name, content_type, seen, created_at
		FROM files WHERE user_id=$1
		ORDER BY created_at DESC
		`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	result := make([]*models.File, 0)
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.ID, &f.UserID, &f.SymmetricKeyID, &f.StorageKey, &f.FileName, &f.ContentType, &f.Seen, &f.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the file row. Exactly one row must be affected.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM files WHERE id=$1`, id, "failed to delete file")
}

// MarkSeen flags the file as downloaded by a journalist.
func (r *PostgresRepository) MarkSeen(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE files SET seen=true WHERE id=$1`, id, "failed to mark seen")
}

func (r *PostgresRepository) execOne(ctx context.Context, query, id, what string) error {
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrorNotFound
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

const withKeyColumns = `f.id, f.user_id, f.symmetrical_key_id, f.storage_key, f.file_name, f.content_type, f.seen, f.created_at,
		k.id, k.public_key_id, k.nonce, k.key`

func scanWithKey(s interface{ Scan(...any) error }) (*models.FileWithKey, error) {
	var fk models.FileWithKey
	err := s.Scan(&fk.ID, &fk.UserID, &fk.SymmetricKeyID, &fk.StorageKey, &fk.FileName, &fk.ContentType, &fk.Seen, &fk.CreatedAt,
		&fk.Key.ID, &fk.Key.PublicKeyID, &fk.Key.Nonce, &fk.Key.WrappedKey)
	if err != nil {
		return nil, err
	}
	return &fk, nil
}

// GetWithKey returns the file joined with its wrapped key.
func (r *PostgresRepository) GetWithKey(ctx context.Context, id string) (*models.FileWithKey, error) {
	query := `SELECT ` + withKeyColumns + `
		FROM files f JOIN symmetrical_keys k ON k.id = f.symmetrical_key_id
		WHERE f.id=$1`

	fk, err := scanWithKey(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return fk, nil
}

// ListSinceWithKeys returns every file created strictly after since, oldest
// first, joined with its wrapped key.
func (r *PostgresRepository) ListSinceWithKeys(ctx context.Context, since time.Time) ([]*models.FileWithKey, error) {
	query := `SELECT ` + withKeyColumns + `
		FROM files f JOIN symmetrical_keys k ON k.id = f.symmetrical_key_id
		WHERE f.created_at > $1
		ORDER BY f.created_at`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileWithKey
	for rows.Next() {
		fk, err := scanWithKey(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
