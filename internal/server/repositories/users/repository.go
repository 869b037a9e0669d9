// Package users persists passphrase-only accounts.
package users

import (
	"context"

	"github.com/whistledrop/whistledrop/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByLookup(ctx context.Context, lookup string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}
