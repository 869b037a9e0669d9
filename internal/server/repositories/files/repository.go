package files

import (
	"context"
	"time"

	"github.com/whistledrop/whistledrop/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id string) (*models.File, error)
	ListByUser(ctx context.Context, userID string) ([]*models.File, error)
	Delete(ctx context.Context, id string) error
	MarkSeen(ctx context.Context, id string) error
	GetWithKey(ctx context.Context, id string) (*models.FileWithKey, error)
	ListSinceWithKeys(ctx context.Context, since time.Time) ([]*models.FileWithKey, error)
}
