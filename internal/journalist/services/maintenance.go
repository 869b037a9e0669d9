package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/filex"
	"github.com/whistledrop/whistledrop/internal/journalist/repositories/metadata"
)

// SecretBytes is the length of a generated server secret before hex encoding.
const SecretBytes = 32

// GenerateSecret returns a random hex string suitable for the server's JWT
// and passphrase lookup secrets.
func GenerateSecret() (string, error) {
	return common.MakeRandHexString(SecretBytes)
}

// SetServerAddress stores addr (typically an onion host) as the server to
// use instead of the configured URL.
func SetServerAddress(ctx context.Context, meta metadata.Repository, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("server address must not be empty")
	}
	return meta.Set(ctx, metadata.KeyOnionAddress, addr)
}

// ServerAddress returns the stored address, or fallback if none was set.
func ServerAddress(ctx context.Context, meta metadata.Repository, fallback string) (string, error) {
	addr, err := meta.Get(ctx, metadata.KeyOnionAddress)
	if errors.Is(err, common.ErrorNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return addr, nil
}

// Cleanup deletes the keystore file and the given directories. The keystore
// must be closed first. It returns what was actually removed.
func Cleanup(keystorePath string, dirs ...string) ([]string, error) {
	var removed []string
	if keystorePath != "" {
		err := os.Remove(keystorePath)
		switch {
		case err == nil:
			removed = append(removed, keystorePath)
		case !errors.Is(err, fs.ErrNotExist):
			return removed, fmt.Errorf("remove %s: %w", keystorePath, err)
		}
	}

	gone, err := filex.RemoveDirs(dirs...)
	return append(removed, gone...), err
}
