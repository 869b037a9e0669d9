package services

import (
	"context"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/cryptox"
	"github.com/whistledrop/whistledrop/internal/journalist/repositories/keypairs"
)

type memMeta struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemMeta() *memMeta { return &memMeta{m: map[string]string{}} }

func (r *memMeta) Get(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.m[key]
	if !ok {
		return "", common.ErrorNotFound
	}
	return v, nil
}

func (r *memMeta) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[key] = value
	return nil
}

func (r *memMeta) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, key)
	return nil
}

func (r *memMeta) List(_ context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.m))
	for k, v := range r.m {
		out[k] = v
	}
	return out, nil
}

func (r *memMeta) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m = map[string]string{}
	return nil
}

type memKeys struct {
	mu    sync.Mutex
	pairs map[string]*keypairs.KeyPair
	order []string
}

func newMemKeys() *memKeys { return &memKeys{pairs: map[string]*keypairs.KeyPair{}} }

func (r *memKeys) Insert(_ context.Context, kp *keypairs.KeyPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pairs[kp.ID]; ok {
		return common.ErrorAlreadyExists
	}
	cp := *kp
	cp.CreatedAt = time.Now()
	r.pairs[kp.ID] = &cp
	r.order = append(r.order, kp.ID)
	return nil
}

func (r *memKeys) GetByID(_ context.Context, id string) (*keypairs.KeyPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kp, ok := r.pairs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *kp
	return &cp, nil
}

func (r *memKeys) ListUnuploaded(_ context.Context) ([]*keypairs.KeyPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*keypairs.KeyPair
	for _, id := range r.order {
		if kp := r.pairs[id]; !kp.Uploaded {
			cp := *kp
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memKeys) MarkUploaded(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kp, ok := r.pairs[id]
	if !ok {
		return common.ErrorNotFound
	}
	kp.Uploaded = true
	return nil
}

func (r *memKeys) Count(_ context.Context) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var up int64
	for _, kp := range r.pairs {
		if kp.Uploaded {
			up++
		}
	}
	return int64(len(r.pairs)), up, nil
}

type fakeRemote struct {
	mu        sync.Mutex
	published map[string][]byte
	publishFn func(id string) error
	stock     int64
	since     time.Time
	archive   []byte
	filesErr  error
}

func (f *fakeRemote) Login(context.Context, string) error { return nil }

func (f *fakeRemote) PublishKey(_ context.Context, id string, pemData []byte) error {
	if f.publishFn != nil {
		if err := f.publishFn(id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.published == nil {
		f.published = map[string][]byte{}
	}
	f.published[id] = pemData
	return nil
}

func (f *fakeRemote) KeyStock(context.Context) (int64, error) { return f.stock, nil }

func (f *fakeRemote) NewFiles(_ context.Context, since time.Time) ([]byte, error) {
	f.since = since
	return f.archive, f.filesErr
}

// testKey is shared by every test in the package; generating RSA keys is slow.
var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func sharedKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		k, err := cryptox.GenerateKeyPair(cryptox.MinKeyBits)
		require.NoError(t, err)
		testKey = k
	})
	require.NotNil(t, testKey)
	return testKey
}
