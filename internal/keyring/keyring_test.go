package keyring_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/TheMichaelB/vaultctl/internal/keyring"
)

func TestStoreRoundTrip(t *testing.T) {
	gokeyring.MockInit()

	store := keyring.New("vaultctl-test")
	path := filepath.Join(t.TempDir(), "vault.kdbx")

	assert.False(t, store.HasPassword(path))

	require.NoError(t, store.SavePassword(path, "s3cret"))
	assert.True(t, store.HasPassword(path))

	pw, err := store.GetPassword(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	require.NoError(t, store.DeletePassword(path))
	_, err = store.GetPassword(path)
	assert.True(t, keyring.IsNotFound(err))
}

func TestStoreRelativePathsShareEntry(t *testing.T) {
	gokeyring.MockInit()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	store := keyring.New("")
	assert.Equal(t, keyring.DefaultService, store.Service())

	require.NoError(t, store.SavePassword("vault.kdbx", "pw"))
	abs, err := filepath.Abs("vault.kdbx")
	require.NoError(t, err)

	pw, err := store.GetPassword(abs)
	require.NoError(t, err)
	assert.Equal(t, "pw", pw)
}

func TestAccountEmpty(t *testing.T) {
	_, err := keyring.Account("")
	assert.Error(t, err)
}
