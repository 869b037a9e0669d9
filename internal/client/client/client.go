package client

import (
	"context"

	"github.com/whistledrop/whistledrop/internal/api"
)

type Client interface {
	Login(ctx context.Context, passphrase string) (*api.TokenResponse, error)
	Register(ctx context.Context) (*api.TokenResponse, error)
	ListFiles(ctx context.Context) ([]api.FileInfo, error)
	UploadFile(ctx context.Context, path string) error
	DeleteFile(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Watch(ctx context.Context, fn func(api.Event)) error
}

// TokenSource supplies the bearer token for authorized requests.
// *session.Session satisfies it.
type TokenSource interface {
	Token() string
}
