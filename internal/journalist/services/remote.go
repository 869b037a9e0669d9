package services

import (
	"context"
	"time"
)

// Remote is the part of the server API the journalist tool uses.
type Remote interface {
	Login(ctx context.Context, passphrase string) error
	PublishKey(ctx context.Context, id string, pemData []byte) error
	KeyStock(ctx context.Context) (int64, error)
	NewFiles(ctx context.Context, since time.Time) ([]byte, error)
}
