package services

import (
	"context"
	"errors"
	"sync"

	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/client/client"
)

var errBoom = errors.New("boom")

type fakeClient struct {
	mu sync.Mutex

	loginResp *api.TokenResponse
	loginErr  error
	lastPass  string
	loginGate chan struct{}

	registerResp *api.TokenResponse
	registerErr  error

	files    []api.FileInfo
	listErr  error
	listCall int

	uploadErr  error
	uploaded   []string
	deleteErr  error
	deletedIDs []string
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) Login(ctx context.Context, passphrase string) (*api.TokenResponse, error) {
	if f.loginGate != nil {
		<-f.loginGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPass = passphrase
	return f.loginResp, f.loginErr
}

func (f *fakeClient) Register(ctx context.Context) (*api.TokenResponse, error) {
	return f.registerResp, f.registerErr
}

func (f *fakeClient) ListFiles(ctx context.Context) ([]api.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCall++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]api.FileInfo, len(f.files))
	copy(out, f.files)
	return out, nil
}

func (f *fakeClient) UploadFile(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, path)
	return f.uploadErr
}

func (f *fakeClient) DeleteFile(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteErr
}

func (f *fakeClient) Ping(ctx context.Context) error {
	return nil
}

func (f *fakeClient) Watch(ctx context.Context, fn func(api.Event)) error {
	<-ctx.Done()
	return nil
}

func (f *fakeClient) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCall
}
