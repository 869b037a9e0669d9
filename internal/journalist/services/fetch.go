package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/filex"
	"github.com/whistledrop/whistledrop/internal/journalist/remote"
	"github.com/whistledrop/whistledrop/internal/journalist/repositories/metadata"
	"github.com/whistledrop/whistledrop/internal/logging"
)

// DefaultSinceDate is used for the very first fetch.
const DefaultSinceDate = "2000-01-01"

type FetchService struct {
	remote      Remote
	meta        metadata.Repository
	downloadDir string
	logger      logging.Logger
	now         func() time.Time
}

func NewFetchService(r Remote, meta metadata.Repository, downloadDir string, l logging.Logger) *FetchService {
	return &FetchService{
		remote:      r,
		meta:        meta,
		downloadDir: downloadDir,
		logger:      l.With("module", "fetch"),
		now:         time.Now,
	}
}

type FetchResult struct {
	Since time.Time
	// Files counts blobs extracted, not counting their key info entries.
	Files int
	Dir   string
}

// LastFetchDate returns the stored fetch date or DefaultSinceDate.
func (s *FetchService) LastFetchDate(ctx context.Context) (time.Time, error) {
	raw, err := s.meta.Get(ctx, metadata.KeyLastFetchDate)
	if errors.Is(err, common.ErrorNotFound) {
		raw = DefaultSinceDate
	} else if err != nil {
		return time.Time{}, err
	}

	t, err := time.Parse(common.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored fetch date %q: %w", raw, common.ErrInvalidDate)
	}
	return t, nil
}

// Fetch downloads everything uploaded since the last fetch into the
// download directory and moves the fetch date to the current UTC day, the
// calendar the server compares since_date in. When the server has
// nothing new the date is left alone and Files is zero.
func (s *FetchService) Fetch(ctx context.Context) (FetchResult, error) {
	since, err := s.LastFetchDate(ctx)
	if err != nil {
		return FetchResult{}, err
	}
	res := FetchResult{Since: since}

	data, err := s.remote.NewFiles(ctx, since)
	if errors.Is(err, remote.ErrNoNewFiles) {
		return res, nil
	}
	if err != nil {
		return res, err
	}

	dir, err := filex.EnsureDir(s.downloadDir)
	if err != nil {
		return res, err
	}
	res.Dir = dir

	res.Files, err = s.extract(ctx, data, dir)
	if err != nil {
		return res, err
	}

	if err := s.meta.Set(ctx, metadata.KeyLastFetchDate, s.now().UTC().Format(common.DateLayout)); err != nil {
		return res, err
	}
	s.logger.Info(ctx, "fetch complete", "files", res.Files, "since", since.Format(common.DateLayout))
	return res, nil
}

// extract writes the archive entries flat into dir. Entries whose names
// carry a path are skipped.
func (s *FetchService) extract(ctx context.Context, data []byte, dir string) (int, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if errors.Is(err, zip.ErrInsecurePath) {
		err = nil
	}
	if err != nil {
		return 0, fmt.Errorf("read archive: %w", err)
	}

	files := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filex.SafeBase(f.Name)
		if name != f.Name {
			s.logger.Warn(ctx, "skipping archive entry", "name", f.Name)
			continue
		}

		if err := extractFile(f, filepath.Join(dir, name)); err != nil {
			return files, err
		}
		if !strings.HasSuffix(name, api.KeyInfoSuffix) {
			files++
		}
	}
	return files, nil
}

func extractFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}
