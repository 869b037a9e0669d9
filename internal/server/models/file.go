// Package models defines server-side data models persisted in the database.
package models

import "time"

// File is the metadata of one encrypted upload. The ciphertext lives in blob
// storage under StorageKey.
type File struct {
	ID             string
	UserID         string
	SymmetricKeyID string
	StorageKey     string
	// FileName is the stored display name, "<stem>_encrypted".
	FileName    string
	ContentType string
	// Seen flips to true once a journalist has downloaded the file.
	Seen      bool
	CreatedAt time.Time
}

// FileWithKey joins a file with the wrapped key needed to decrypt it.
type FileWithKey struct {
	File
	Key SymmetricKey
}
