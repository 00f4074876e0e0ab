package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStoreRoundTrip(t *testing.T) {
	store := NewMemoryTokenStore()
	_, ok := store.Get()
	assert.False(t, ok)

	require.NoError(t, store.Set("abc.def.ghi"))
	token, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)

	require.NoError(t, store.Clear())
	_, ok = store.Get()
	assert.False(t, ok)
	assert.Error(t, store.Set(""))
}

func TestFileTokenStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insights", "credentials")
	store, err := NewFileTokenStore(path)
	require.NoError(t, err)

	_, ok := store.Get()
	assert.False(t, ok)

	require.NoError(t, store.Set("secret-token"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := NewFileTokenStore(path)
	require.NoError(t, err)
	token, ok := reopened.Get()
	require.True(t, ok)
	assert.Equal(t, "secret-token", token)

	require.NoError(t, reopened.Clear())
	require.NoError(t, reopened.Clear())
	_, ok = store.Get()
	assert.False(t, ok)
}

func TestFileTokenStoreSealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	hashKey := []byte("0123456789abcdef0123456789abcdef")
	blockKey := []byte("abcdef0123456789abcdef0123456789")

	store, err := NewFileTokenStore(path, WithSealing(hashKey, blockKey))
	require.NoError(t, err)
	require.NoError(t, store.Set("secret-token"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-token")

	token, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, "secret-token", token)

	otherKey := []byte("ffffffffffffffffffffffffffffffff")
	foreign, err := NewFileTokenStore(path, WithSealing(otherKey, blockKey))
	require.NoError(t, err)
	_, ok = foreign.Get()
	assert.False(t, ok)

	plain, err := NewFileTokenStore(path)
	require.NoError(t, err)
	sealed, ok := plain.Get()
	require.True(t, ok)
	assert.NotEqual(t, "secret-token", sealed)
}

func TestFileTokenStoreMalformedFileIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	require.NoError(t, os.WriteFile(path, []byte("token: [unterminated"), 0o600))

	store, err := NewFileTokenStore(path)
	require.NoError(t, err)
	_, ok := store.Get()
	assert.False(t, ok)

	_, err = NewFileTokenStore("")
	assert.Error(t, err)
}
