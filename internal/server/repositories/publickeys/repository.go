package publickeys

import (
	"context"

	"github.com/whistledrop/whistledrop/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, key *models.PublicKey) error
	ClaimActive(ctx context.Context) (*models.PublicKey, error)
	CountActive(ctx context.Context) (int64, error)
}
