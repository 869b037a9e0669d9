package services

import "errors"

var (
	ErrBusy              = errors.New("another request is already in progress")
	ErrInvalidPassphrase = errors.New("invalid passphrase")
	ErrNoSelection       = errors.New("no file selected")
)

// UserError carries the message shown to the user while keeping the
// underlying cause for errors.Is and logging.
type UserError struct {
	Msg string
	Err error
}

func (e *UserError) Error() string { return e.Msg }

func (e *UserError) Unwrap() error { return e.Err }
