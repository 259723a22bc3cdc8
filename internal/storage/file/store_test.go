package file

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/catalog-client/internal/model"
)

func TestTokenStore_LoadMissing(t *testing.T) {
	s := NewTokenStore(filepath.Join(t.TempDir(), "token"))

	_, err := s.Load()
	require.ErrorIs(t, err, model.ErrNoToken)
}

func TestTokenStore_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "token")
	s := NewTokenStore(path)

	require.NoError(t, s.Save("abc.def.ghi"))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", got)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	require.NoError(t, s.Save("second"))
	got, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	require.NoError(t, s.Clear())
	_, err = s.Load()
	require.ErrorIs(t, err, model.ErrNoToken)

	// clearing twice is fine
	require.NoError(t, s.Clear())
}

func TestTokenStore_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	_, err := NewTokenStore(path).Load()
	require.ErrorIs(t, err, model.ErrNoToken)
}

func TestTokenStore_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	s := NewTokenStore(filepath.Join(dir, "token"))
	require.NoError(t, s.Save("x"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "token", entries[0].Name())
}
