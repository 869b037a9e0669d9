package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/cryptox"
	"github.com/whistledrop/whistledrop/internal/journalist/repositories/keypairs"
)

type sealedUpload struct {
	id        string
	stored    string
	plaintext []byte
}

// buildArchive encrypts uploads the way the server does and packs them like
// the new-files endpoint. The wrapping key is stored in keys under keyID.
func buildArchive(t *testing.T, keys *memKeys, keyID string, uploads ...sealedUpload) []byte {
	t.Helper()
	priv := sharedKey(t)

	if _, err := keys.GetByID(context.Background(), keyID); err != nil {
		privPEM, err := cryptox.EncodePrivateKeyPEM(priv)
		require.NoError(t, err)
		pubPEM, err := cryptox.EncodePublicKeyPEM(&priv.PublicKey)
		require.NoError(t, err)
		require.NoError(t, keys.Insert(context.Background(), &keypairs.KeyPair{
			ID: keyID, PublicKey: string(pubPEM), PrivateKey: string(privPEM), Uploaded: true,
		}))
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, u := range uploads {
		sealed, err := cryptox.Seal(u.plaintext)
		require.NoError(t, err)
		wrapped, err := cryptox.WrapKey(&priv.PublicKey, sealed.Key)
		require.NoError(t, err)

		w, err := zw.Create(u.id + "_" + u.stored)
		require.NoError(t, err)
		_, err = w.Write(sealed.Ciphertext)
		require.NoError(t, err)

		info, err := json.Marshal(api.KeyInfo{
			FileID:       u.id,
			FileName:     u.stored,
			EncryptedKey: wrapped,
			Nonce:        base64.StdEncoding.EncodeToString(sealed.Nonce),
			PublicKeyID:  keyID,
		})
		require.NoError(t, err)
		w, err = zw.Create(u.id + api.KeyInfoSuffix)
		require.NoError(t, err)
		_, err = w.Write(info)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
