package services

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/client/client"
	"github.com/whistledrop/whistledrop/internal/logging"
)

func tempFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o600))
	return p
}

func ids(files []api.FileInfo) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.ID)
	}
	return out
}

func TestSelect(t *testing.T) {
	s := NewFileService(&fakeClient{}, logging.Discard())

	err := s.Select("")
	assert.ErrorIs(t, err, ErrNoSelection)

	err = s.Select(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = s.Select(t.TempDir())
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.Equal(t, "", s.Selected())

	p := tempFile(t, "a.txt")
	require.NoError(t, s.Select(p))
	assert.Equal(t, p, s.Selected())
}

func TestUpload_NoSelection(t *testing.T) {
	c := &fakeClient{}
	s := NewFileService(c, logging.Discard())

	err := s.Upload(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Please select a file to upload", err.Error())
	assert.Empty(t, c.uploaded)
}

func TestUpload_SuccessClearsAndRefreshes(t *testing.T) {
	c := &fakeClient{files: []api.FileInfo{{ID: "1", FileName: "a.pdf"}}}
	s := NewFileService(c, logging.Discard())
	p := tempFile(t, "a.pdf")
	require.NoError(t, s.Select(p))

	require.NoError(t, s.Upload(context.Background()))
	assert.Equal(t, []string{p}, c.uploaded)
	assert.Equal(t, "", s.Selected())
	assert.Equal(t, []string{"1"}, ids(s.Files()))
}

func TestUpload_FailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server detail", &client.APIError{Status: http.StatusUnsupportedMediaType, Detail: "Only PDF files are allowed"}, "Only PDF files are allowed"},
		{"no detail", &client.APIError{Status: http.StatusBadGateway}, "Upload failed"},
		{"network", client.ErrUnavailable, "Upload failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeClient{uploadErr: tt.err}
			s := NewFileService(c, logging.Discard())
			p := tempFile(t, "a.pdf")
			require.NoError(t, s.Select(p))

			err := s.Upload(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, p, s.Selected())
			assert.Equal(t, 0, c.listCalls())
		})
	}
}

func TestDelete_RemovesLocallyWithoutRefetch(t *testing.T) {
	c := &fakeClient{files: []api.FileInfo{{ID: "1"}, {ID: "2"}, {ID: "3"}}}
	s := NewFileService(c, logging.Discard())
	require.NoError(t, s.Refresh(context.Background()))

	require.NoError(t, s.Delete(context.Background(), "2"))
	assert.Equal(t, []string{"1", "3"}, ids(s.Files()))
	assert.Equal(t, []string{"2"}, c.deletedIDs)
	assert.Equal(t, 1, c.listCalls())
}

func TestDelete_Failure(t *testing.T) {
	c := &fakeClient{
		files:     []api.FileInfo{{ID: "1"}},
		deleteErr: &client.APIError{Status: http.StatusForbidden, Detail: "You do not have permission to delete this file"},
	}
	s := NewFileService(c, logging.Discard())
	require.NoError(t, s.Refresh(context.Background()))

	err := s.Delete(context.Background(), "1")
	require.Error(t, err)
	assert.Equal(t, "You do not have permission to delete this file", err.Error())
	assert.Equal(t, []string{"1"}, ids(s.Files()))

	c.deleteErr = errBoom
	err = s.Delete(context.Background(), "1")
	assert.Equal(t, "Failed to delete file", err.Error())
}

func TestRefresh_ReplacesWholesale(t *testing.T) {
	c := &fakeClient{files: []api.FileInfo{{ID: "1"}}}
	s := NewFileService(c, logging.Discard())
	s.ApplyEvent(api.Event{Type: api.EventFileCreated, File: api.FileInfo{ID: "local"}})

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, []string{"1"}, ids(s.Files()))

	c.listErr = errBoom
	assert.ErrorIs(t, s.Refresh(context.Background()), errBoom)
	assert.Equal(t, []string{"1"}, ids(s.Files()))
}

func TestPoll_RefreshesUntilCancelled(t *testing.T) {
	c := &fakeClient{files: []api.FileInfo{{ID: "1"}}}
	s := NewFileService(c, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Poll(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return c.listCalls() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Poll did not stop")
	}
	assert.Equal(t, []string{"1"}, ids(s.Files()))
}

func TestPoll_ErrorsDoNotStopIt(t *testing.T) {
	c := &fakeClient{listErr: errBoom}
	s := NewFileService(c, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Poll(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool { return c.listCalls() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestApplyEvent(t *testing.T) {
	s := NewFileService(&fakeClient{}, logging.Discard())

	s.ApplyEvent(api.Event{Type: api.EventFileCreated, File: api.FileInfo{ID: "1", FileName: "a.pdf"}})
	s.ApplyEvent(api.Event{Type: api.EventFileCreated, File: api.FileInfo{ID: "2", FileName: "b.pdf"}})
	assert.Equal(t, []string{"2", "1"}, ids(s.Files()))

	s.ApplyEvent(api.Event{Type: api.EventFileCreated, File: api.FileInfo{ID: "1", FileName: "a2.pdf"}})
	f, ok := s.Find("1")
	require.True(t, ok)
	assert.Equal(t, "a2.pdf", f.FileName)
	assert.Len(t, s.Files(), 2)

	s.ApplyEvent(api.Event{Type: api.EventFileSeen, File: api.FileInfo{ID: "1"}})
	f, _ = s.Find("1")
	assert.True(t, f.Seen)

	s.ApplyEvent(api.Event{Type: api.EventFileDeleted, File: api.FileInfo{ID: "2"}})
	assert.Equal(t, []string{"1"}, ids(s.Files()))

	s.ApplyEvent(api.Event{Type: "unknown", File: api.FileInfo{ID: "9"}})
	assert.Equal(t, []string{"1"}, ids(s.Files()))

	_, ok = s.Find("9")
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	s := NewFileService(&fakeClient{}, logging.Discard())
	s.ApplyEvent(api.Event{Type: api.EventFileCreated, File: api.FileInfo{ID: "1"}})
	require.NoError(t, s.Select(tempFile(t, "a.pdf")))

	s.Reset()
	assert.Empty(t, s.Files())
	assert.Equal(t, "", s.Selected())
}
