package services

import (
	"archive/zip"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/cryptox"
	"github.com/whistledrop/whistledrop/internal/logging"
	"github.com/whistledrop/whistledrop/internal/server/models"
	"github.com/whistledrop/whistledrop/internal/server/repositories/repomanager"
	"github.com/whistledrop/whistledrop/internal/server/storage"
)

// JournalistService backs the admin routes: publishing one-time public keys
// and downloading encrypted uploads together with their key info.
type JournalistService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.Store
	notifier    Notifier
	logger      logging.Logger
}

func NewJournalistService(db *sql.DB, m repomanager.RepositoryManager, store storage.Store, n Notifier, logger logging.Logger) *JournalistService {
	return &JournalistService{
		db:          db,
		repomanager: m,
		store:       store,
		notifier:    n,
		logger:      logger.With("module", "journalist"),
	}
}

// AddPublicKey stores a PEM encoded RSA public key under id, a UUID chosen
// by the journalist tool so it can match the private half later.
func (s *JournalistService) AddPublicKey(ctx context.Context, id string, pemData []byte) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("key id %q: %w", id, common.ErrInvalidPublicKey)
	}
	if _, err := cryptox.ParsePublicKeyPEM(pemData); err != nil {
		return err
	}
	if err := s.repomanager.PublicKeys(s.db).Create(ctx, &models.PublicKey{ID: id, PEM: string(pemData)}); err != nil {
		return err
	}
	s.logger.Info(ctx, "public key added", "key_id", id)
	return nil
}

// ActiveKeys reports how many public keys are still unclaimed.
func (s *JournalistService) ActiveKeys(ctx context.Context) (int64, error) {
	return s.repomanager.PublicKeys(s.db).CountActive(ctx)
}

// Download is a single encrypted file ready to stream. The caller closes Body.
type Download struct {
	File *models.FileWithKey
	Body io.ReadCloser
}

// EncodedNonce returns the nonce the way it travels in headers and key info.
func (d *Download) EncodedNonce() string {
	return base64.StdEncoding.EncodeToString(d.File.Key.Nonce)
}

// Download opens the blob of fileID and marks the file seen.
func (s *JournalistService) Download(ctx context.Context, fileID string) (*Download, error) {
	if _, err := uuid.Parse(fileID); err != nil {
		return nil, common.ErrorNotFound
	}

	fk, err := s.repomanager.Files(s.db).GetWithKey(ctx, fileID)
	if err != nil {
		return nil, err
	}

	body, err := s.store.Get(ctx, fk.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("storage error: %w", err)
	}

	s.markSeen(ctx, fk)
	return &Download{File: fk, Body: body}, nil
}

// ParseSinceDate accepts YYYY-MM-DD and returns midnight UTC of that day.
func ParseSinceDate(s string) (time.Time, error) {
	t, err := time.Parse(common.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", s, common.ErrInvalidDate)
	}
	return t, nil
}

// NewFiles lists the files created after since. common.ErrorNotFound means
// there are none.
func (s *JournalistService) NewFiles(ctx context.Context, since time.Time) ([]*models.FileWithKey, error) {
	files, err := s.repomanager.Files(s.db).ListSinceWithKeys(ctx, since)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, common.ErrorNotFound
	}
	return files, nil
}

// WriteArchive streams files into a zip on w: each blob as "<id>_<name>"
// next to "<id>_key_info.json". Blobs that cannot be read are skipped and
// logged; the returned count is the number actually written.
func (s *JournalistService) WriteArchive(ctx context.Context, w io.Writer, files []*models.FileWithKey) (int, error) {
	zw := zip.NewWriter(w)
	written := 0

	for _, fk := range files {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		ok, err := s.addToArchive(ctx, zw, fk)
		if err != nil {
			return written, err
		}
		if ok {
			written++
			s.markSeen(ctx, fk)
		}
	}

	if err := zw.Close(); err != nil {
		return written, err
	}
	return written, nil
}

// addToArchive reports false when the blob is unreadable. Errors are
// returned only for failures writing the archive itself.
func (s *JournalistService) addToArchive(ctx context.Context, zw *zip.Writer, fk *models.FileWithKey) (bool, error) {
	body, err := s.store.Get(ctx, fk.StorageKey)
	if err != nil {
		s.logger.Error(ctx, "skipping file in archive", "file_id", fk.ID, "error", err)
		return false, nil
	}
	defer body.Close()

	entry, err := zw.Create(fk.ID + "_" + fk.FileName)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(entry, body); err != nil {
		return false, fmt.Errorf("archive %s: %w", fk.ID, err)
	}

	info, err := json.MarshalIndent(KeyInfo(fk), "", "  ")
	if err != nil {
		return false, err
	}
	entry, err = zw.Create(fk.ID + api.KeyInfoSuffix)
	if err != nil {
		return false, err
	}
	if _, err := entry.Write(info); err != nil {
		return false, err
	}
	return true, nil
}

// KeyInfo is the decryption material for fk.
func KeyInfo(fk *models.FileWithKey) api.KeyInfo {
	return api.KeyInfo{
		FileID:       fk.ID,
		FileName:     fk.FileName,
		EncryptedKey: fk.Key.WrappedKey,
		Nonce:        base64.StdEncoding.EncodeToString(fk.Key.Nonce),
		PublicKeyID:  fk.Key.PublicKeyID,
	}
}

func (s *JournalistService) markSeen(ctx context.Context, fk *models.FileWithKey) {
	if fk.Seen {
		return
	}
	if err := s.repomanager.Files(s.db).MarkSeen(ctx, fk.ID); err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "mark seen", "file_id", fk.ID, "error", err)
		}
		return
	}
	fk.Seen = true
	s.notifier.Publish(ctx, fk.UserID, api.Event{Type: api.EventFileSeen, File: FileInfo(&fk.File)})
}
