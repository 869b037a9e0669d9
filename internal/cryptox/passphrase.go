package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/whistledrop/whistledrop/internal/common"
	"golang.org/x/crypto/argon2"
)

const saltSize = 16

// DeriveKey stretches secret with argon2id using the parameters shared by
// every verifier in the database.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// PassphraseLookup returns a deterministic, keyed digest of the passphrase.
// It indexes users so login never scans every verifier.
func PassphraseLookup(pepper []byte, passphrase []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write(passphrase)
	return hex.EncodeToString(mac.Sum(nil))
}

// HashPassphrase returns "salt$hash" (both hex) for storage.
func HashPassphrase(passphrase []byte) string {
	salt := common.GenerateRandByteArray(saltSize)
	hash := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(hash)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash)
}

// VerifyPassphrase checks passphrase against a value produced by
// HashPassphrase in constant time. Malformed stored values never verify.
func VerifyPassphrase(stored string, passphrase []byte) bool {
	saltHex, hashHex, ok := strings.Cut(stored, "$")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}
	got := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(got)
	return subtle.ConstantTimeCompare(want, got) == 1
}
