// Package services implements the journalist tool's operations on top of the
// local keystore and the remote server: key generation and publication,
// fetching new uploads, decrypting them and housekeeping.
package services
