package common

import "errors"

// Callers should match these values with errors.Is.
var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Upload errors.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrNoPublicKey         = errors.New("no public key available")
	ErrInvalidPublicKey    = errors.New("invalid public key")
	ErrInvalidDate         = errors.New("invalid date")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
