package symkeys

import (
	"context"

	"github.com/whistledrop/whistledrop/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, key *models.SymmetricKey) (*models.SymmetricKey, error)
	Delete(ctx context.Context, id string) error
}
