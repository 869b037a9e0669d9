package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/whistledrop/whistledrop/internal/cryptox"
	"github.com/whistledrop/whistledrop/internal/journalist/remote"
	"github.com/whistledrop/whistledrop/internal/journalist/repositories/keypairs"
	"github.com/whistledrop/whistledrop/internal/logging"
)

// generateKeyPair is swapped in tests; real RSA generation is slow.
var generateKeyPair = cryptox.GenerateKeyPair

type KeyService struct {
	keys   keypairs.Repository
	logger logging.Logger
}

func NewKeyService(keys keypairs.Repository, l logging.Logger) *KeyService {
	return &KeyService{keys: keys, logger: l.With("module", "keys")}
}

// Generate creates count RSA key pairs of the given size and stores them
// unpublished. It returns the new key ids.
func (s *KeyService) Generate(ctx context.Context, count, bits int) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("number of keys must be greater than 0")
	}
	if bits < cryptox.MinKeyBits {
		return nil, fmt.Errorf("key size must be at least %d bits", cryptox.MinKeyBits)
	}

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return ids, err
		}

		priv, err := generateKeyPair(bits)
		if err != nil {
			return ids, fmt.Errorf("generate key: %w", err)
		}
		privPEM, err := cryptox.EncodePrivateKeyPEM(priv)
		if err != nil {
			return ids, err
		}
		pubPEM, err := cryptox.EncodePublicKeyPEM(&priv.PublicKey)
		if err != nil {
			return ids, err
		}

		kp := &keypairs.KeyPair{ID: uuid.NewString(), PublicKey: string(pubPEM), PrivateKey: string(privPEM)}
		if err := s.keys.Insert(ctx, kp); err != nil {
			return ids, err
		}
		ids = append(ids, kp.ID)
		s.logger.Debug(ctx, "key pair generated", "key_id", kp.ID, "bits", bits)
	}
	return ids, nil
}

type PublishResult struct {
	Published    int
	// AlreadyKnown counts keys the server had from an earlier, interrupted run.
	AlreadyKnown int
}

// Publish uploads every unpublished public key and flags each one as soon
// as the server accepts it, so an interrupted run can resume.
func (s *KeyService) Publish(ctx context.Context, r Remote) (PublishResult, error) {
	var res PublishResult

	pending, err := s.keys.ListUnuploaded(ctx)
	if err != nil {
		return res, err
	}

	for _, kp := range pending {
		err := r.PublishKey(ctx, kp.ID, []byte(kp.PublicKey))
		switch {
		case err == nil:
			res.Published++
		case errors.Is(err, remote.ErrKeyExists):
			res.AlreadyKnown++
		default:
			return res, fmt.Errorf("publish %s: %w", kp.ID, err)
		}

		if err := s.keys.MarkUploaded(ctx, kp.ID); err != nil {
			return res, err
		}
		s.logger.Info(ctx, "public key published", "key_id", kp.ID)
	}
	return res, nil
}

type KeyStock struct {
	Local        int64
	Published    int64
	// ServerActive is the number of published keys not yet used by an upload.
	ServerActive int64
}

// Stock combines local key counts with the server's count of unused keys.
// A nil Remote reports local counts only.
func (s *KeyService) Stock(ctx context.Context, r Remote) (KeyStock, error) {
	var st KeyStock

	total, uploaded, err := s.keys.Count(ctx)
	if err != nil {
		return st, err
	}
	st.Local, st.Published = total, uploaded

	if r == nil {
		return st, nil
	}
	st.ServerActive, err = r.KeyStock(ctx)
	return st, err
}
