package models

import "time"

// User is an account identified only by its passphrase. The passphrase itself
// is never stored: PassphraseLookup is a keyed digest used to find the row and
// PassphraseHash an argon2id verifier used to check it.
type User struct {
	ID               string
	PassphraseLookup string
	PassphraseHash   string
	IsAdmin          bool
	CreatedAt        time.Time
}
