// Package storage keeps the encrypted upload blobs. Two drivers exist: a
// local directory and an S3-compatible bucket (MinIO in development).
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/whistledrop/whistledrop/internal/server/config"
)

// Store persists blobs by key. Put may store under a different key than the
// suggested name and returns the one actually used.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, size int64) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New builds the Store selected by cfg.StorageDriver.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case config.StorageFS, "":
		return NewFSStore(cfg.FilePath)
	case config.StorageS3:
		return NewS3Store(ctx, S3Options{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
