package keypairs

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whistledrop/whistledrop/internal/common"

	_ "modernc.org/sqlite"
)

func newRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE keypairs (
  id          TEXT PRIMARY KEY,
  public_key  TEXT NOT NULL,
  private_key TEXT NOT NULL,
  uploaded    INTEGER NOT NULL DEFAULT 0,
  created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`)
	require.NoError(t, err)
	return NewSQLiteRepository(db), db
}

func TestInsertAndGetByID(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, &KeyPair{ID: "k1", PublicKey: "PUB", PrivateKey: "PRIV"}))

	kp, err := r.GetByID(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "PUB", kp.PublicKey)
	assert.Equal(t, "PRIV", kp.PrivateKey)
	assert.False(t, kp.Uploaded)
	assert.False(t, kp.CreatedAt.IsZero())

	_, err = r.GetByID(ctx, "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestInsert_DuplicateFails(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, &KeyPair{ID: "k1", PublicKey: "P", PrivateKey: "S"}))
	err := r.Insert(ctx, &KeyPair{ID: "k1", PublicKey: "P", PrivateKey: "S"})
	require.ErrorContains(t, err, "failed to insert key pair k1")
}

func TestListUnuploadedAndMarkUploaded(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Insert(ctx, &KeyPair{ID: id, PublicKey: "P" + id, PrivateKey: "S" + id}))
	}
	require.NoError(t, r.MarkUploaded(ctx, "b"))

	list, err := r.ListUnuploaded(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "c", list[1].ID)

	total, uploaded, err := r.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.EqualValues(t, 1, uploaded)

	kp, err := r.GetByID(ctx, "b")
	require.NoError(t, err)
	assert.True(t, kp.Uploaded)
}

func TestMarkUploaded_Missing(t *testing.T) {
	r, _ := newRepo(t)
	require.ErrorIs(t, r.MarkUploaded(context.Background(), "nope"), common.ErrorNotFound)
}

func TestCount_Empty(t *testing.T) {
	r, _ := newRepo(t)
	total, uploaded, err := r.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, uploaded)
}

func TestErrorsWrapped(t *testing.T) {
	r, db := newRepo(t)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := r.GetByID(ctx, "k")
	require.ErrorContains(t, err, "failed to get key pair k")
	_, err = r.ListUnuploaded(ctx)
	require.ErrorContains(t, err, "failed to list key pairs")
	require.ErrorContains(t, r.MarkUploaded(ctx, "k"), "failed to mark key pair k")
	_, _, err = r.Count(ctx)
	require.ErrorContains(t, err, "failed to count key pairs")
}
