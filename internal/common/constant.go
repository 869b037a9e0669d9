// Package common contains shared constants, sentinel errors and small
// helpers used across the WhistleDrop server, client and journalist tool.
package common

// AuthorizationHeaderName carries the bearer access token on API requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

// API path prefix shared by the server router and both HTTP clients.
const APIPrefix = "/api/v1"

// Headers attached to a single-file download.
const (
	EncryptedKeyHeaderName = "X-Encrypted-Key"
	NonceHeaderName        = "X-Nonce"
	PublicKeyIDHeaderName  = "X-Public-Key-ID"
)

// DateLayout is the day-resolution date format used by since_date.
const DateLayout = "2006-01-02"
