package models

// PublicKey is a journalist RSA public key in PEM form. Each key wraps
// exactly one file key; Active becomes false once it has been claimed.
type PublicKey struct {
	ID     string
	Active bool
	PEM    string
}

// SymmetricKey is a per-file AES key wrapped with PublicKeyID, base64 encoded.
type SymmetricKey struct {
	ID          string
	PublicKeyID string
	Nonce       []byte
	WrappedKey  string
}
