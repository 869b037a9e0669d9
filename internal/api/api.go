// Package api holds the JSON bodies exchanged between the WhistleDrop server,
// the whistleblower client and the journalist tool.
package api

import "time"

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type LoginRequest struct {
	Passphrase string `json:"passphrase"`
}

// TokenResponse answers both login and registration. Passphrase is only
// filled in by registration and is never sent again.
type TokenResponse struct {
	Message     string `json:"message"`
	UserID      string `json:"user_id"`
	Passphrase  string `json:"passphrase,omitempty"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// FileInfo is one row of the upload list.
type FileInfo struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
	Seen      bool      `json:"seen"`
}

// KeyInfo accompanies every blob in a new-files archive.
type KeyInfo struct {
	FileID       string `json:"file_id"`
	FileName     string `json:"file_name"`
	EncryptedKey string `json:"encrypted_key"`
	Nonce        string `json:"nonce"`
	PublicKeyID  string `json:"public_key_id"`
}

// Push event types.
const (
	EventFileCreated = "file.created"
	EventFileDeleted = "file.deleted"
	EventFileSeen    = "file.seen"
)

// Event is pushed over the upload websocket.
type Event struct {
	Type string   `json:"type"`
	File FileInfo `json:"file"`
}

// Archive entry names inside a new-files zip.
const KeyInfoSuffix = "_key_info.json"

// KeyStockResponse tells a journalist how many one-time keys are left.
type KeyStockResponse struct {
	Active int64 `json:"active"`
}
