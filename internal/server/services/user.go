// Package services contains server-side business logic. This file implements
// UserService: passphrase registration and login, access token issuing and
// resolving a bearer token back to a user.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-diceware/diceware"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/cryptox"
	"github.com/whistledrop/whistledrop/internal/server/auth"
	"github.com/whistledrop/whistledrop/internal/server/config"
	"github.com/whistledrop/whistledrop/internal/server/models"
	"github.com/whistledrop/whistledrop/internal/server/repositories/repomanager"
)

// PassphraseWords is the number of diceware words in a generated passphrase.
const PassphraseWords = 6

// registerAttempts bounds retries when a freshly generated passphrase
// collides with an existing one.
const registerAttempts = 3

var generatePassphrase = func() (string, error) {
	words, err := diceware.Generate(PassphraseWords)
	if err != nil {
		return "", err
	}
	return strings.Join(words, " "), nil
}

// Session is what a successful login or registration hands back.
type Session struct {
	UserID      string
	AccessToken string
	// Passphrase is only set by Register.
	Passphrase string
}

// UserService provides authentication-related operations:
// - Register: create a user with a generated passphrase
// - Login: look a user up by passphrase and mint a token
// - Authenticate: resolve a bearer token to its user
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// Register creates a user behind a new diceware passphrase. The passphrase is
// returned once and never stored in clear.
func (s *UserService) Register(ctx context.Context) (*Session, error) {
	for attempt := 0; attempt < registerAttempts; attempt++ {
		passphrase, err := generatePassphrase()
		if err != nil {
			return nil, fmt.Errorf("error generating passphrase: %w", err)
		}

		user, err := s.createUser(ctx, passphrase, false)
		if errors.Is(err, common.ErrorAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, err
		}

		token, err := s.generateAccessToken(user.ID)
		if err != nil {
			return nil, common.ErrorInternal
		}
		return &Session{UserID: user.ID, AccessToken: token, Passphrase: passphrase}, nil
	}
	return nil, fmt.Errorf("error creating user: %w", common.ErrorAlreadyExists)
}

// Login returns a token for the user owning passphrase. Every kind of
// mismatch is reported as common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, passphrase string) (*Session, error) {
	user, err := s.findByPassphrase(ctx, passphrase)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if !cryptox.VerifyPassphrase(user.PassphraseHash, []byte(passphrase)) {
		return nil, common.ErrorUnauthorized
	}

	token, err := s.generateAccessToken(user.ID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &Session{UserID: user.ID, AccessToken: token}, nil
}

// Authenticate validates a bearer token and loads its user. Tokens for users
// that no longer exist are rejected like invalid ones.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

// EnsureAdmin makes sure an admin account exists behind passphrase.
func (s *UserService) EnsureAdmin(ctx context.Context, passphrase string) (*models.User, error) {
	user, err := s.findByPassphrase(ctx, passphrase)
	switch {
	case err == nil:
		if !user.IsAdmin {
			return nil, fmt.Errorf("admin passphrase belongs to a regular user: %w", common.ErrorAlreadyExists)
		}
		return user, nil
	case errors.Is(err, common.ErrorNotFound):
		return s.createUser(ctx, passphrase, true)
	default:
		return nil, err
	}
}

func (s *UserService) findByPassphrase(ctx context.Context, passphrase string) (*models.User, error) {
	lookup := cryptox.PassphraseLookup(s.jwtSecret, []byte(passphrase))
	return s.repomanager.Users(s.db).GetByLookup(ctx, lookup)
}

func (s *UserService) createUser(ctx context.Context, passphrase string, admin bool) (*models.User, error) {
	user := &models.User{
		PassphraseLookup: cryptox.PassphraseLookup(s.jwtSecret, []byte(passphrase)),
		PassphraseHash:   cryptox.HashPassphrase([]byte(passphrase)),
		IsAdmin:          admin,
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

func (s *UserService) generateAccessToken(userID string) (string, error) {
	return auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
}
