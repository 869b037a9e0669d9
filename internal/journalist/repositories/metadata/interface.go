// Package metadata stores small named values in the journalist keystore,
// such as the last fetch date and the server's onion address.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeyLastFetchDate = "last_fetch_date"
	KeyOnionAddress  = "onion_address"

	// KeyDecryptedPrefix + file id marks a file as already decrypted.
	KeyDecryptedPrefix = "decrypted:"
)

// Repository is a string key-value store. Get returns common.ErrorNotFound
// for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
}
