package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	_, err := db.Get([]byte("head"))
	require.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, db.Put([]byte("head"), []byte("v1")))
	got, err := db.Get([]byte("head"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)

	require.NoError(t, db.Delete([]byte("head")))
	_, err = db.Get([]byte("head"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLevelDBSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	db, err := NewLevelDB(dir)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NotNil(t, db.TrieDB())
	require.NoError(t, db.Close())

	reopened, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	_, err = reopened.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutRejectsEmptyKey(t *testing.T) {
	db := NewMemDB()
	require.Error(t, db.Put(nil, []byte("v")))
}
