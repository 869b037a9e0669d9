// Package cryptox holds the cryptographic primitives of WhistleDrop.
//
// Uploaded files are sealed with AES-256-GCM under a fresh per-file key. The
// file key is wrapped with a journalist RSA public key (OAEP, SHA-256) and
// stored base64 encoded; only the holder of the matching private key can
// unwrap it. Passphrases are never stored: the server keeps an HMAC lookup
// value for indexing and an argon2id verifier for checking.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/whistledrop/whistledrop/internal/common"
)

// FileKeySize is the AES-256 key length in bytes.
const FileKeySize = 32

// NonceSize is the standard GCM nonce length.
const NonceSize = 12

// ErrDecrypt is returned when a ciphertext cannot be opened.
var ErrDecrypt = errors.New("decryption failed")

// SealedFile is the result of encrypting one upload.
type SealedFile struct {
	Ciphertext []byte
	Key        []byte
	Nonce      []byte
}

// Wipe zeroes the plaintext file key.
func (s *SealedFile) Wipe() {
	common.WipeByteArray(s.Key)
}

// Seal encrypts plaintext under a freshly generated key and nonce.
func Seal(plaintext []byte) (*SealedFile, error) {
	key := common.GenerateRandByteArray(FileKeySize)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())
	ciphertext := aesgcm.Seal(nil, nonce, plaintext, nil)

	return &SealedFile{Ciphertext: ciphertext, Key: key, Nonce: nonce}, nil
}

// Open reverses Seal.
func Open(ciphertext, key, nonce []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aesgcm.NonceSize() {
		return nil, ErrDecrypt
	}
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
