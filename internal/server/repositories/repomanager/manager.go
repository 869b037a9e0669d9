package repomanager

import (
	"context"
	"database/sql"

	"github.com/whistledrop/whistledrop/internal/dbx"
	"github.com/whistledrop/whistledrop/internal/server/repositories/files"
	"github.com/whistledrop/whistledrop/internal/server/repositories/publickeys"
	"github.com/whistledrop/whistledrop/internal/server/repositories/symkeys"
	"github.com/whistledrop/whistledrop/internal/server/repositories/users"
)

// RepositoryManager binds repositories to a DBTX so services can use the
// same code inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	PublicKeys(db dbx.DBTX) publickeys.Repository
	SymmetricKeys(db dbx.DBTX) symkeys.Repository
}
