package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/journalist/remote"
	"github.com/whistledrop/whistledrop/internal/journalist/repositories/metadata"
	"github.com/whistledrop/whistledrop/internal/logging"
)

func newFetch(t *testing.T, r Remote, meta *memMeta) (*FetchService, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "downloads")
	s := NewFetchService(r, meta, dir, logging.Discard())
	s.now = func() time.Time { return time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC) }
	return s, dir
}

func TestFetch_FirstRunUsesDefaultDate(t *testing.T) {
	keys := newMemKeys()
	r := &fakeRemote{archive: buildArchive(t, keys, "k1",
		sealedUpload{id: "f1", stored: "report_encrypted", plaintext: []byte("%PDF-1")},
		sealedUpload{id: "f2", stored: "memo_encrypted", plaintext: []byte("%PDF-2")},
	)}
	meta := newMemMeta()
	s, dir := newFetch(t, r, meta)

	res, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, DefaultSinceDate, r.since.Format(common.DateLayout))

	for _, name := range []string{"f1_report_encrypted", "f1_key_info.json", "f2_memo_encrypted", "f2_key_info.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	v, err := meta.Get(context.Background(), metadata.KeyLastFetchDate)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", v)
}

func TestFetch_StoresUTCDay(t *testing.T) {
	keys := newMemKeys()
	r := &fakeRemote{archive: buildArchive(t, keys, "k1",
		sealedUpload{id: "f1", stored: "report_encrypted", plaintext: []byte("%PDF-1")},
	)}
	meta := newMemMeta()
	s, _ := newFetch(t, r, meta)

	// 01:00 on June 2nd at UTC+5 is still June 1st on the server.
	fetchedAt := time.Date(2024, 6, 2, 1, 0, 0, 0, time.FixedZone("UTC+5", 5*60*60))
	s.now = func() time.Time { return fetchedAt }

	_, err := s.Fetch(context.Background())
	require.NoError(t, err)

	v, err := meta.Get(context.Background(), metadata.KeyLastFetchDate)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", v)

	next, err := s.LastFetchDate(context.Background())
	require.NoError(t, err)
	uploadedAfterFetch := fetchedAt.Add(time.Hour).UTC()
	assert.True(t, uploadedAfterFetch.After(next), "upload at %s must be newer than since %s", uploadedAfterFetch, next)
}

func TestFetch_UsesStoredDate(t *testing.T) {
	meta := newMemMeta()
	require.NoError(t, meta.Set(context.Background(), metadata.KeyLastFetchDate, "2024-05-20"))
	r := &fakeRemote{filesErr: remote.ErrNoNewFiles}
	s, dir := newFetch(t, r, meta)

	res, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Files)
	assert.Equal(t, "2024-05-20", r.since.Format(common.DateLayout))

	v, _ := meta.Get(context.Background(), metadata.KeyLastFetchDate)
	assert.Equal(t, "2024-05-20", v)

	_, err = os.Stat(dir)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFetch_BadStoredDate(t *testing.T) {
	meta := newMemMeta()
	require.NoError(t, meta.Set(context.Background(), metadata.KeyLastFetchDate, "yesterday"))
	s, _ := newFetch(t, &fakeRemote{}, meta)

	_, err := s.Fetch(context.Background())
	require.ErrorIs(t, err, common.ErrInvalidDate)
}

func TestFetch_RemoteError(t *testing.T) {
	meta := newMemMeta()
	s, _ := newFetch(t, &fakeRemote{filesErr: errors.New("tor down")}, meta)

	_, err := s.Fetch(context.Background())
	require.ErrorContains(t, err, "tor down")

	_, err = meta.Get(context.Background(), metadata.KeyLastFetchDate)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFetch_SkipsEntriesWithPaths(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"../escape", "sub/inner", "ok_encrypted"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, _ = w.Write([]byte("x"))
	}
	require.NoError(t, zw.Close())

	s, dir := newFetch(t, &fakeRemote{archive: buf.Bytes()}, newMemMeta())
	res, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ok_encrypted", entries[0].Name())
}

func TestFetch_CorruptArchive(t *testing.T) {
	s, _ := newFetch(t, &fakeRemote{archive: []byte("not a zip")}, newMemMeta())
	_, err := s.Fetch(context.Background())
	require.ErrorContains(t, err, "read archive")
}
