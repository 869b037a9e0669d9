package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/cryptox"
	"github.com/whistledrop/whistledrop/internal/filex"
	"github.com/whistledrop/whistledrop/internal/journalist/repositories/keypairs"
	"github.com/whistledrop/whistledrop/internal/journalist/repositories/metadata"
	"github.com/whistledrop/whistledrop/internal/logging"
)

// encryptedSuffix is appended by the server to every stored file name.
const encryptedSuffix = "_encrypted"

type DecryptService struct {
	keys      keypairs.Repository
	meta      metadata.Repository
	inputDir  string
	outputDir string
	logger    logging.Logger
}

func NewDecryptService(keys keypairs.Repository, meta metadata.Repository, inputDir, outputDir string, l logging.Logger) *DecryptService {
	return &DecryptService{
		keys:      keys,
		meta:      meta,
		inputDir:  inputDir,
		outputDir: outputDir,
		logger:    l.With("module", "decrypt"),
	}
}

type DecryptResult struct {
	Decrypted int
	Skipped   int
	Failed    int
	// Written lists the output file names, in processing order.
	Written   []string
}

// Decrypt processes every key info file in the input directory. Files
// already decrypted by an earlier run are skipped; a file that fails is
// logged and counted, and the rest carry on.
func (s *DecryptService) Decrypt(ctx context.Context) (DecryptResult, error) {
	var res DecryptResult

	infos, err := filepath.Glob(filepath.Join(s.inputDir, "*"+api.KeyInfoSuffix))
	if err != nil {
		return res, err
	}
	if len(infos) == 0 {
		return res, nil
	}
	sort.Strings(infos)

	outDir, err := filex.EnsureDir(s.outputDir)
	if err != nil {
		return res, err
	}

	for _, infoPath := range infos {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		info, err := readKeyInfo(infoPath)
		if err != nil {
			s.logger.Error(ctx, "bad key info", "path", infoPath, "error", err)
			res.Failed++
			continue
		}

		if _, err := s.meta.Get(ctx, metadata.KeyDecryptedPrefix+info.FileID); err == nil {
			res.Skipped++
			continue
		} else if !errors.Is(err, common.ErrorNotFound) {
			return res, err
		}

		name, err := s.decryptOne(ctx, info, outDir)
		if err != nil {
			s.logger.Error(ctx, "decrypt failed", "file_id", info.FileID, "error", err)
			res.Failed++
			continue
		}
		res.Decrypted++
		res.Written = append(res.Written, name)
	}
	return res, nil
}

func readKeyInfo(path string) (*api.KeyInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info api.KeyInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return nil, err
	}
	if info.FileID == "" {
		info.FileID = strings.TrimSuffix(filepath.Base(path), api.KeyInfoSuffix)
	}
	if info.FileName == "" || info.PublicKeyID == "" {
		return nil, fmt.Errorf("incomplete key info")
	}
	return &info, nil
}

func (s *DecryptService) decryptOne(ctx context.Context, info *api.KeyInfo, outDir string) (string, error) {
	blob, err := os.ReadFile(filepath.Join(s.inputDir, info.FileID+"_"+filex.SafeBase(info.FileName)))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("encrypted file missing")
	}
	if err != nil {
		return "", err
	}

	kp, err := s.keys.GetByID(ctx, info.PublicKeyID)
	if err != nil {
		return "", fmt.Errorf("private key %s: %w", info.PublicKeyID, err)
	}
	priv, err := cryptox.ParsePrivateKeyPEM([]byte(kp.PrivateKey))
	if err != nil {
		return "", err
	}

	key, err := cryptox.UnwrapKey(priv, info.EncryptedKey)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	nonce, err := base64.StdEncoding.DecodeString(info.Nonce)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}

	plain, err := cryptox.Open(blob, key, nonce)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(plain)

	out, name, err := filex.CreateUnique(outDir, OutputName(info.FileName))
	if err != nil {
		return "", err
	}
	if _, err := out.Write(plain); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	if err := s.meta.Set(ctx, metadata.KeyDecryptedPrefix+info.FileID, name); err != nil {
		return "", err
	}
	s.logger.Info(ctx, "file decrypted", "file_id", info.FileID, "output", name)
	return name, nil
}

// OutputName turns a stored name such as "report_encrypted" into
// "report.pdf".
func OutputName(stored string) string {
	stem := strings.TrimSuffix(filex.SafeBase(stored), encryptedSuffix)
	if stem == "" {
		stem = "file"
	}
	return stem + ".pdf"
}
