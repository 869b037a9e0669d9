package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/dbx"
	"github.com/whistledrop/whistledrop/internal/server/models"
	"github.com/whistledrop/whistledrop/internal/server/repositories/files"
	"github.com/whistledrop/whistledrop/internal/server/repositories/publickeys"
	"github.com/whistledrop/whistledrop/internal/server/repositories/symkeys"
	"github.com/whistledrop/whistledrop/internal/server/repositories/users"
)

var errBoom = errors.New("boom")

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// --- users ---

type fakeUsersRepo struct {
	mu        sync.Mutex
	byID      map[string]*models.User
	createErr error
	getErr    error
}

func newFakeUsersRepo() *fakeUsersRepo { return &fakeUsersRepo{byID: map[string]*models.User{}} }

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.PassphraseLookup == u.PassphraseLookup {
			return nil, common.ErrorAlreadyExists
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByLookup(ctx context.Context, lookup string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.PassphraseLookup == lookup {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

// --- files ---

type fakeFilesRepo struct {
	byID      map[string]*models.FileWithKey
	keys      *fakeSymKeysRepo
	createErr error
	deleteErr error
	listErr   error
	seenErr   error
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.File) (*models.File, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	file.ID = uuid.NewString()
	file.CreatedAt = time.Now()
	fk := &models.FileWithKey{File: *file}
	if k, ok := f.keys.byID[file.SymmetricKeyID]; ok {
		fk.Key = *k
	}
	f.byID[file.ID] = fk
	return file, nil
}

func (f *fakeFilesRepo) GetByID(ctx context.Context, id string) (*models.File, error) {
	fk, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	file := fk.File
	return &file, nil
}

func (f *fakeFilesRepo) ListByUser(ctx context.Context, userID string) ([]*models.File, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.File, 0)
	for _, fk := range f.byID {
		if fk.UserID == userID {
			file := fk.File
			out = append(out, &file)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeFilesRepo) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeFilesRepo) MarkSeen(ctx context.Context, id string) error {
	if f.seenErr != nil {
		return f.seenErr
	}
	fk, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	fk.Seen = true
	return nil
}

func (f *fakeFilesRepo) GetWithKey(ctx context.Context, id string) (*models.FileWithKey, error) {
	fk, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *fk
	return &cp, nil
}

func (f *fakeFilesRepo) ListSinceWithKeys(ctx context.Context, since time.Time) ([]*models.FileWithKey, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.FileWithKey
	for _, fk := range f.byID {
		if fk.CreatedAt.After(since) {
			cp := *fk
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- keys ---

type fakePublicKeysRepo struct {
	keys      []*models.PublicKey
	claimErr  error
	createErr error
}

func (f *fakePublicKeysRepo) Create(ctx context.Context, key *models.PublicKey) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, k := range f.keys {
		if k.ID == key.ID {
			return common.ErrorAlreadyExists
		}
	}
	key.Active = true
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakePublicKeysRepo) ClaimActive(ctx context.Context) (*models.PublicKey, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	for _, k := range f.keys {
		if k.Active {
			k.Active = false
			return &models.PublicKey{ID: k.ID, PEM: k.PEM}, nil
		}
	}
	return nil, common.ErrNoPublicKey
}

func (f *fakePublicKeysRepo) CountActive(ctx context.Context) (int64, error) {
	var n int64
	for _, k := range f.keys {
		if k.Active {
			n++
		}
	}
	return n, nil
}

type fakeSymKeysRepo struct {
	byID      map[string]*models.SymmetricKey
	createErr error
	deleteErr error
}

func (f *fakeSymKeysRepo) Create(ctx context.Context, key *models.SymmetricKey) (*models.SymmetricKey, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	key.ID = uuid.NewString()
	f.byID[key.ID] = key
	return key, nil
}

func (f *fakeSymKeysRepo) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.byID, id)
	return nil
}

// --- manager ---

type fakeRepoManager struct {
	users *fakeUsersRepo
	files *fakeFilesRepo
	pub   *fakePublicKeysRepo
	sym   *fakeSymKeysRepo
}

func newFakeRepoManager() *fakeRepoManager {
	sym := &fakeSymKeysRepo{byID: map[string]*models.SymmetricKey{}}
	return &fakeRepoManager{
		users: newFakeUsersRepo(),
		files: &fakeFilesRepo{byID: map[string]*models.FileWithKey{}, keys: sym},
		pub:   &fakePublicKeysRepo{},
		sym:   sym,
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository {
	return m.users
}

func (m *fakeRepoManager) Files(db dbx.DBTX) files.Repository {
	return m.files
}

func (m *fakeRepoManager) PublicKeys(db dbx.DBTX) publickeys.Repository {
	return m.pub
}

func (m *fakeRepoManager) SymmetricKeys(db dbx.DBTX) symkeys.Repository {
	return m.sym
}

// --- storage and notifications ---

type fakeStore struct {
	blobs  map[string][]byte
	putErr error
	getErr error
	delErr error
}

func newFakeStore() *fakeStore { return &fakeStore{blobs: map[string][]byte{}} }

func (s *fakeStore) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := name
	for n := 1; ; n++ {
		if _, ok := s.blobs[key]; !ok {
			break
		}
		key = fmt.Sprintf("%s_%d", name, n)
	}
	s.blobs[key] = b
	return key, nil
}

func (s *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	b, ok := s.blobs[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	if s.delErr != nil {
		return s.delErr
	}
	if _, ok := s.blobs[key]; !ok {
		return common.ErrorNotFound
	}
	delete(s.blobs, key)
	return nil
}

type publishedEvent struct {
	userID string
	ev     api.Event
}

type fakeNotifier struct {
	events []publishedEvent
}

func (n *fakeNotifier) Publish(ctx context.Context, userID string, ev api.Event) {
	n.events = append(n.events, publishedEvent{userID: userID, ev: ev})
}
