// Package keystore opens the journalist's local SQLite database and exposes
// its repositories.
package keystore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/whistledrop/whistledrop/internal/journalist/migrations"
	"github.com/whistledrop/whistledrop/internal/journalist/repositories/keypairs"
	"github.com/whistledrop/whistledrop/internal/journalist/repositories/metadata"

	_ "modernc.org/sqlite"
)

var gooseUpContext = goose.UpContext

type Keystore struct {
	DB       *sql.DB
	Metadata metadata.Repository
	KeyPairs keypairs.Repository
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return gooseUpContext(ctx, db, ".")
}

// Open creates the database file at path if needed and brings the schema
// up to date.
func Open(ctx context.Context, path string) (*Keystore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single writer keeps SQLite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("keystore migrations: %w", err)
	}

	return &Keystore{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
		KeyPairs: keypairs.NewSQLiteRepository(db),
	}, nil
}

func (k *Keystore) Close() error {
	return k.DB.Close()
}
