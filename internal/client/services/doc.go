// Package services holds the whistleblower client's application logic:
// passphrase login and registration over a shared in-memory session, and the
// upload list with its selection, upload, delete and refresh operations.
package services
