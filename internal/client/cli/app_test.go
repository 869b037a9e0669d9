package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/client/client"
	"github.com/whistledrop/whistledrop/internal/client/config"
	"github.com/whistledrop/whistledrop/internal/client/session"
	"github.com/whistledrop/whistledrop/internal/logging"
)

type fakeClient struct {
	mu sync.Mutex

	loginErr     error
	registerResp *api.TokenResponse
	files        []api.FileInfo
	listCalls    int
	uploadErr    error
	uploaded     []string
	deleted      []string
	events       []api.Event
	watchCalls   int
}

func (f *fakeClient) Login(ctx context.Context, passphrase string) (*api.TokenResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &api.TokenResponse{AccessToken: "jwt"}, nil
}

func (f *fakeClient) Register(ctx context.Context) (*api.TokenResponse, error) {
	if f.registerResp == nil {
		return nil, errors.New("boom")
	}
	return f.registerResp, nil
}

func (f *fakeClient) ListFiles(ctx context.Context) ([]api.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]api.FileInfo(nil), f.files...), nil
}

func (f *fakeClient) UploadFile(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, path)
	return f.uploadErr
}

func (f *fakeClient) DeleteFile(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }

func (f *fakeClient) Watch(ctx context.Context, fn func(api.Event)) error {
	f.mu.Lock()
	f.watchCalls++
	events := f.events
	f.mu.Unlock()

	for _, ev := range events {
		fn(ev)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeClient) calls() (list, watch int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.watchCalls
}

func testConfig() *config.Config {
	return &config.Config{ServerURL: "http://localhost:8000", PollInterval: time.Hour, RequestTimeout: time.Second}
}

func newTestApp(t *testing.T, fc *fakeClient, input string) (*App, *session.Session, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	sess := session.New()
	a := newApp(testConfig(), fc, sess, logging.Discard(), strings.NewReader(input), &out)
	t.Cleanup(func() {
		a.leaveView()
		a.bg.Wait()
	})
	return a, sess, &out
}

func stubPassphrase(t *testing.T, pw string) {
	t.Helper()
	orig := getPassphrase
	getPassphrase = func(_ io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassphrase = orig })
}

func stubClipboard(t *testing.T, err error) *string {
	t.Helper()
	var copied string
	orig := copyToClipboard
	copyToClipboard = func(s string) error {
		copied = s
		return err
	}
	t.Cleanup(func() { copyToClipboard = orig })
	return &copied
}

func TestNewApp_BadServerURL(t *testing.T) {
	cfg := testConfig()
	cfg.ServerURL = "ftp://nowhere"
	_, err := NewApp(cfg)
	require.Error(t, err)
}

func TestNewApp(t *testing.T) {
	a, err := NewApp(testConfig())
	require.NoError(t, err)
	assert.Equal(t, RouteLanding, a.Route())
}

func TestNavigate_ProtectedRouteRedirects(t *testing.T) {
	fc := &fakeClient{}
	a, sess, _ := newTestApp(t, fc, "")
	ctx := context.Background()

	assert.Equal(t, RouteLanding, a.Navigate(ctx, RouteUpload))
	assert.Equal(t, RouteLanding, a.Navigate(ctx, "/nowhere"))

	sess.SetToken("jwt")
	assert.Equal(t, RouteUpload, a.Navigate(ctx, RouteUpload))
	assert.Equal(t, RouteLanding, a.Navigate(ctx, "/admin"))
	assert.Equal(t, RouteLanding, a.Route())
}

func TestNavigate_UploadViewStartsAndStopsPolling(t *testing.T) {
	fc := &fakeClient{files: []api.FileInfo{{ID: "1", FileName: "a.pdf"}}}
	a, sess, _ := newTestApp(t, fc, "")
	a.config.PollInterval = 5 * time.Millisecond
	sess.SetToken("jwt")

	a.Navigate(context.Background(), RouteUpload)
	require.Eventually(t, func() bool {
		n, _ := fc.calls()
		return n >= 2
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, a.files.Files(), 1)

	a.Navigate(context.Background(), RouteLanding)
	a.bg.Wait()
	before, _ := fc.calls()
	time.Sleep(30 * time.Millisecond)
	after, _ := fc.calls()
	assert.Equal(t, before, after)
}

func TestLogin_Success(t *testing.T) {
	stubPassphrase(t, "six words")
	fc := &fakeClient{}
	a, sess, out := newTestApp(t, fc, "")

	require.NoError(t, a.Login(context.Background()))
	assert.Equal(t, "jwt", sess.Token())
	assert.Equal(t, RouteUpload, a.Route())
	assert.Contains(t, out.String(), "Login successful")
}

func TestLogin_FailureStaysOnLanding(t *testing.T) {
	stubPassphrase(t, "wrong")
	fc := &fakeClient{loginErr: &client.APIError{Status: http.StatusUnauthorized}}
	a, sess, out := newTestApp(t, fc, "")

	require.Error(t, a.Login(context.Background()))
	assert.False(t, sess.IsAuthenticated())
	assert.Equal(t, RouteLanding, a.Route())
	assert.Contains(t, out.String(), "invalid passphrase")
}

func TestRegister_ShowsPassphraseOnceAndCopies(t *testing.T) {
	copied := stubClipboard(t, nil)
	fc := &fakeClient{registerResp: &api.TokenResponse{Passphrase: "alpha bravo charlie delta echo foxtrot", AccessToken: "jwt"}}
	a, sess, out := newTestApp(t, fc, "y\n")

	require.NoError(t, a.Register(context.Background()))
	assert.Equal(t, "alpha bravo charlie delta echo foxtrot", *copied)
	assert.Equal(t, 1, strings.Count(out.String(), "alpha bravo charlie delta echo foxtrot"))
	assert.Contains(t, out.String(), oneTimeWarning)
	assert.Contains(t, out.String(), "Copied.")
	assert.Equal(t, "jwt", sess.Token())
	assert.Equal(t, RouteUpload, a.Route())
}

func TestRegister_DeclineCopyAndClipboardError(t *testing.T) {
	copied := stubClipboard(t, errors.New("no display"))
	fc := &fakeClient{registerResp: &api.TokenResponse{Passphrase: "p", AccessToken: "jwt"}}

	a, _, _ := newTestApp(t, fc, "n\n")
	require.NoError(t, a.Register(context.Background()))
	assert.Equal(t, "", *copied)

	a, _, out := newTestApp(t, fc, "y\n")
	require.NoError(t, a.Register(context.Background()))
	assert.Contains(t, out.String(), "Could not access the clipboard")
}

func TestRegister_Failure(t *testing.T) {
	a, sess, out := newTestApp(t, &fakeClient{}, "")
	require.Error(t, a.Register(context.Background()))
	assert.False(t, sess.IsAuthenticated())
	assert.Contains(t, out.String(), "Could not generate a passphrase")
}

func TestLogout_ClearsEverything(t *testing.T) {
	fc := &fakeClient{files: []api.FileInfo{{ID: "1"}}}
	a, sess, _ := newTestApp(t, fc, "")
	sess.SetToken("jwt")
	a.Navigate(context.Background(), RouteUpload)
	require.Eventually(t, func() bool { return len(a.files.Files()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.Logout(context.Background()))
	assert.False(t, sess.IsAuthenticated())
	assert.Empty(t, a.files.Files())
	assert.Equal(t, RouteLanding, a.Route())
}

func TestList(t *testing.T) {
	fc := &fakeClient{files: []api.FileInfo{
		{ID: "1", FileName: "new.pdf", CreatedAt: time.Now(), Seen: true},
		{ID: "2", FileName: "old.pdf", CreatedAt: time.Now().Add(-time.Hour)},
	}}
	a, _, out := newTestApp(t, fc, "")

	require.NoError(t, a.List(context.Background()))
	assert.Contains(t, out.String(), "No files uploaded yet")

	out.Reset()
	require.NoError(t, a.Refresh(context.Background()))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "1. ")
	assert.Contains(t, lines[0], "new.pdf")
	assert.Contains(t, lines[0], "[seen]")
	assert.NotContains(t, lines[1], "[seen]")
}

func TestSelectAndUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leak.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	fc := &fakeClient{files: []api.FileInfo{{ID: "1", FileName: "leak.pdf"}}}
	a, _, out := newTestApp(t, fc, path+"\n")

	require.Error(t, a.Upload(context.Background(), nil))
	assert.Contains(t, out.String(), "Please select a file to upload")

	require.NoError(t, a.Select(context.Background(), nil))
	assert.Contains(t, out.String(), "only PDF files allowed")

	require.NoError(t, a.Upload(context.Background(), nil))
	assert.Equal(t, []string{path}, fc.uploaded)
	assert.Contains(t, out.String(), "Upload successful")
	assert.Equal(t, "", a.files.Selected())
}

func TestUpload_WithPathShowsServerDetail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o600))

	fc := &fakeClient{uploadErr: &client.APIError{Status: http.StatusUnsupportedMediaType, Detail: "Only PDF files are allowed"}}
	a, _, out := newTestApp(t, fc, "")

	require.Error(t, a.Upload(context.Background(), []string{path}))
	assert.Contains(t, out.String(), "Only PDF files are allowed")
	assert.Equal(t, path, a.files.Selected())
}

func TestDelete_ConfirmFlow(t *testing.T) {
	fc := &fakeClient{files: []api.FileInfo{{ID: "id-1", FileName: "a.pdf"}, {ID: "id-2", FileName: "b.pdf"}}}
	a, _, out := newTestApp(t, fc, "n\ny\n")
	require.NoError(t, a.files.Refresh(context.Background()))

	require.NoError(t, a.Delete(context.Background(), []string{"2"}))
	assert.Contains(t, out.String(), "Do you really want to delete the file b.pdf? This action cannot be undone.")
	assert.Contains(t, out.String(), "Cancelled")
	assert.Empty(t, fc.deleted)

	require.NoError(t, a.Delete(context.Background(), []string{"id-1"}))
	assert.Equal(t, []string{"id-1"}, fc.deleted)
	require.Len(t, a.files.Files(), 1)
	assert.Equal(t, "id-2", a.files.Files()[0].ID)
}

func TestDelete_UnknownAndUsage(t *testing.T) {
	a, _, out := newTestApp(t, &fakeClient{}, "")

	require.NoError(t, a.Delete(context.Background(), nil))
	assert.Contains(t, out.String(), "Usage: delete")

	require.NoError(t, a.Delete(context.Background(), []string{"7"}))
	require.NoError(t, a.Delete(context.Background(), []string{"nope"}))
	assert.Equal(t, 2, strings.Count(out.String(), "No such file:"))
}

func TestWatch_AppliesEvents(t *testing.T) {
	fc := &fakeClient{events: []api.Event{
		{Type: api.EventFileCreated, File: api.FileInfo{ID: "9", FileName: "pushed.pdf"}},
	}}
	a, sess, out := newTestApp(t, fc, "")

	require.NoError(t, a.Watch(context.Background()))
	assert.Contains(t, out.String(), "Open the upload view first")

	sess.SetToken("jwt")
	a.Navigate(context.Background(), RouteUpload)
	require.NoError(t, a.Watch(context.Background()))
	require.NoError(t, a.Watch(context.Background()))
	assert.Contains(t, out.String(), "Already watching")

	require.Eventually(t, func() bool {
		_, ok := a.files.Find("9")
		return ok
	}, time.Second, 5*time.Millisecond)

	_, watches := fc.calls()
	assert.Equal(t, 1, watches)
}

func TestRun_EndToEnd(t *testing.T) {
	stubPassphrase(t, "six words")
	fc := &fakeClient{files: []api.FileInfo{{ID: "1", FileName: "a.pdf"}}}
	var out bytes.Buffer
	a := newApp(testConfig(), fc, session.New(), logging.Discard(), strings.NewReader("login\nrefresh\nlogout\nexit\n"), &out)

	done := make(chan struct{})
	go func() {
		a.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	s := out.String()
	assert.Contains(t, s, "Welcome to WhistleDrop")
	assert.Contains(t, s, "whistledrop /upload> ")
	assert.Contains(t, s, "a.pdf")
	assert.Contains(t, s, "Logged out")
	assert.Contains(t, s, "Bye!")
}
