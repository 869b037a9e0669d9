package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/cryptox"
	"github.com/whistledrop/whistledrop/internal/dbx"
	"github.com/whistledrop/whistledrop/internal/filex"
	"github.com/whistledrop/whistledrop/internal/logging"
	"github.com/whistledrop/whistledrop/internal/server/models"
	"github.com/whistledrop/whistledrop/internal/server/repositories/repomanager"
	"github.com/whistledrop/whistledrop/internal/server/storage"
)

// PDFContentType is the only accepted upload type.
const PDFContentType = "application/pdf"

var pdfMagic = []byte("%PDF-")

// Notifier receives file events for a user; the websocket hub implements it.
type Notifier interface {
	Publish(ctx context.Context, userID string, ev api.Event)
}

// UploadService encrypts whistleblower uploads and manages their list.
type UploadService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.Store
	notifier    Notifier
	logger      logging.Logger
}

func NewUploadService(db *sql.DB, m repomanager.RepositoryManager, store storage.Store, n Notifier, logger logging.Logger) *UploadService {
	return &UploadService{
		db:          db,
		repomanager: m,
		store:       store,
		notifier:    n,
		logger:      logger.With("module", "uploads"),
	}
}

// EncryptedName maps "report.pdf" to "report_encrypted".
func EncryptedName(fileName string) string {
	base := filex.SafeBase(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_encrypted"
}

// IsPDF checks both the declared content type and the file signature.
func IsPDF(contentType string, data []byte) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	if !strings.EqualFold(strings.TrimSpace(mediaType), PDFContentType) {
		return false
	}
	return bytes.HasPrefix(data, pdfMagic)
}

// Upload encrypts data with a fresh AES-256-GCM key, wraps that key with a
// one-time journalist public key and stores both. Nothing is persisted
// unless every step succeeds.
func (s *UploadService) Upload(ctx context.Context, userID, fileName, contentType string, data []byte) (*models.File, error) {
	if !IsPDF(contentType, data) {
		return nil, common.ErrUnsupportedFileType
	}

	sealed, err := cryptox.Seal(data)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	defer sealed.Wipe()

	name := EncryptedName(fileName)

	var storedKey string
	file, err := dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.File, error) {
		pub, err := s.repomanager.PublicKeys(tx).ClaimActive(ctx)
		if err != nil {
			return nil, err
		}

		rsaPub, err := cryptox.ParsePublicKeyPEM([]byte(pub.PEM))
		if err != nil {
			return nil, fmt.Errorf("public key %s: %w", pub.ID, err)
		}
		wrapped, err := cryptox.WrapKey(rsaPub, sealed.Key)
		if err != nil {
			return nil, fmt.Errorf("wrap key: %w", err)
		}

		sym, err := s.repomanager.SymmetricKeys(tx).Create(ctx, &models.SymmetricKey{
			PublicKeyID: pub.ID,
			Nonce:       sealed.Nonce,
			WrappedKey:  wrapped,
		})
		if err != nil {
			return nil, err
		}

		key, err := s.store.Put(ctx, name, bytes.NewReader(sealed.Ciphertext), int64(len(sealed.Ciphertext)))
		if err != nil {
			return nil, fmt.Errorf("storage error: %w", err)
		}
		storedKey = key

		return s.repomanager.Files(tx).Create(ctx, &models.File{
			UserID:         userID,
			SymmetricKeyID: sym.ID,
			StorageKey:     key,
			FileName:       name,
			ContentType:    PDFContentType,
		})
	})
	if err != nil {
		// includes a failed commit
		if storedKey != "" {
			s.removeBlob(ctx, storedKey)
		}
		if errors.Is(err, common.ErrNoPublicKey) {
			s.logger.Warn(ctx, "no public key left for upload", "user_id", userID)
		}
		return nil, err
	}

	s.logger.Info(ctx, "file uploaded", "file_id", file.ID, "user_id", userID)
	s.notifier.Publish(ctx, userID, api.Event{Type: api.EventFileCreated, File: FileInfo(file)})
	return file, nil
}

// List returns the user's files, newest first.
func (s *UploadService) List(ctx context.Context, userID string) ([]*models.File, error) {
	return s.repomanager.Files(s.db).ListByUser(ctx, userID)
}

// Delete removes a file owned by userID, its wrapped key and its blob. The
// blob goes once the rows are committed; if that fails it is logged as
// orphaned and the delete still succeeds.
// Unknown ids give common.ErrorNotFound, other users' files
// common.ErrorForbidden.
func (s *UploadService) Delete(ctx context.Context, userID, fileID string) (*models.File, error) {
	if _, err := uuid.Parse(fileID); err != nil {
		return nil, common.ErrorNotFound
	}

	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.UserID != userID {
		return nil, common.ErrorForbidden
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Files(tx).Delete(ctx, file.ID); err != nil {
			return err
		}
		if err := s.repomanager.SymmetricKeys(tx).Delete(ctx, file.SymmetricKeyID); err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// after commit, so rows never point at a missing blob
	s.removeBlob(ctx, file.StorageKey)

	s.logger.Info(ctx, "file deleted", "file_id", file.ID, "user_id", userID)
	s.notifier.Publish(ctx, userID, api.Event{Type: api.EventFileDeleted, File: FileInfo(file)})
	return file, nil
}

func (s *UploadService) removeBlob(ctx context.Context, key string) {
	err := s.store.Delete(context.WithoutCancel(ctx), key)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.logger.Error(ctx, "orphaned blob", "storage_key", key, "error", err)
	}
}

// FileInfo is the list view of a file.
func FileInfo(f *models.File) api.FileInfo {
	return api.FileInfo{ID: f.ID, FileName: f.FileName, CreatedAt: f.CreatedAt, Seen: f.Seen}
}
