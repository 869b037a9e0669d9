package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/whistledrop/whistledrop/internal/client/client"
	"github.com/whistledrop/whistledrop/internal/client/session"
	"github.com/whistledrop/whistledrop/internal/logging"
)

// AuthService logs the whistleblower in with a passphrase or asks the server
// for a new one. Only one of the two may run at a time.
type AuthService struct {
	client  client.Client
	session *session.Session
	logger  logging.Logger
	busy    atomic.Bool
}

func NewAuthService(c client.Client, s *session.Session, l logging.Logger) *AuthService {
	return &AuthService{client: c, session: s, logger: l.With("module", "auth")}
}

// Loading reports whether a login or registration request is in flight.
func (a *AuthService) Loading() bool {
	return a.busy.Load()
}

func (a *AuthService) acquire() error {
	if !a.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

// Login exchanges the passphrase for an access token. Every failure,
// network or credential, is reported as ErrInvalidPassphrase.
func (a *AuthService) Login(ctx context.Context, passphrase []byte) error {
	if err := a.acquire(); err != nil {
		return err
	}
	defer a.busy.Store(false)

	resp, err := a.client.Login(ctx, string(passphrase))
	if err != nil {
		a.logger.Debug(ctx, "login failed", "error", err)
		return &UserError{Msg: ErrInvalidPassphrase.Error(), Err: ErrInvalidPassphrase}
	}
	if resp.AccessToken == "" {
		return &UserError{Msg: ErrInvalidPassphrase.Error(), Err: ErrInvalidPassphrase}
	}

	a.session.SetToken(resp.AccessToken)
	a.logger.Info(ctx, "logged in")
	return nil
}

// GeneratePassphrase registers a new account. The returned passphrase is the
// only copy the client will ever see.
func (a *AuthService) GeneratePassphrase(ctx context.Context) (string, error) {
	if err := a.acquire(); err != nil {
		return "", err
	}
	defer a.busy.Store(false)

	resp, err := a.client.Register(ctx)
	if err != nil {
		a.logger.Debug(ctx, "registration failed", "error", err)
		return "", &UserError{Msg: "Could not generate a passphrase", Err: err}
	}
	if resp.AccessToken == "" || resp.Passphrase == "" {
		return "", &UserError{Msg: "Could not generate a passphrase", Err: fmt.Errorf("incomplete registration response")}
	}

	a.session.SetToken(resp.AccessToken)
	a.logger.Info(ctx, "registered")
	return resp.Passphrase, nil
}

func (a *AuthService) Logout() {
	a.session.Clear()
}

func (a *AuthService) IsAuthenticated() bool {
	return a.session.IsAuthenticated()
}
