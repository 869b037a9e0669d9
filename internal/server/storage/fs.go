package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/filex"
)

// FSStore writes blobs into a single directory. Name collisions are resolved
// with a numeric suffix (report_encrypted, report_encrypted_1, ...).
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	return &FSStore{root: abs}, nil
}

func (s *FSStore) Put(ctx context.Context, name string, r io.Reader, _ int64) (string, error) {
	f, key, err := filex.CreateUnique(s.root, filex.SafeBase(name))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(filepath.Join(s.root, key))
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(filepath.Join(s.root, key))
		return "", fmt.Errorf("close %s: %w", key, err)
	}

	return key, nil
}

func (s *FSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return common.ErrorNotFound
		}
		return err
	}
	return nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filex.SafeBase(key))
}
