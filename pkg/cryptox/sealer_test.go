package cryptox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateMasterKey_PersistsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "master.key")

	first, err := LoadOrCreateMasterKey(path)
	require.NoError(t, err)
	require.Len(t, first, 32)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadOrCreateMasterKey(path)
	require.NoError(t, err)
	require.Equal(t, first, second, "key must be reused across loads")
}

func TestSealer_RoundTrip(t *testing.T) {
	key, err := LoadOrCreateMasterKey(filepath.Join(t.TempDir(), "master.key"))
	require.NoError(t, err)

	s, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := s.SealString("hunter2")
	require.NoError(t, err)
	require.NotContains(t, string(sealed), "hunter2")

	again, err := s.SealString("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, sealed, again, "nonces must differ")

	plain, err := s.OpenString(sealed)
	require.NoError(t, err)
	require.Equal(t, "hunter2", plain)
}

func TestSealer_Failures(t *testing.T) {
	key := make([]byte, 32)
	s, err := NewSealer(key)
	require.NoError(t, err)

	t.Run("short ciphertext", func(t *testing.T) {
		_, err := s.Open([]byte("abc"))
		require.ErrorIs(t, err, ErrCiphertextTooShort)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		sealed, err := s.Seal([]byte("payload"))
		require.NoError(t, err)
		sealed[len(sealed)-1] ^= 0xff

		_, err = s.Open(sealed)
		require.Error(t, err)
	})

	t.Run("wrong key", func(t *testing.T) {
		sealed, err := s.Seal([]byte("payload"))
		require.NoError(t, err)

		other := make([]byte, 32)
		other[0] = 1
		o, err := NewSealer(other)
		require.NoError(t, err)

		_, err = o.Open(sealed)
		require.Error(t, err)
	})

	t.Run("bad key size", func(t *testing.T) {
		_, err := NewSealer([]byte("short"))
		require.Error(t, err)
	})
}
