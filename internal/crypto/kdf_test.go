package crypto_test

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/vaultctl/internal/crypto"
	"github.com/TheMichaelB/vaultctl/internal/models"
)

func testParams(rounds uint64) crypto.KeyParams {
	return crypto.KeyParams{
		MasterSeed:      bytes.Repeat([]byte{0x11}, models.SeedSize),
		TransformSeed:   bytes.Repeat([]byte{0x22}, models.SeedSize),
		TransformRounds: rounds,
		IV:              bytes.Repeat([]byte{0x33}, models.AESIVSize),
	}
}

// referenceKey recomputes the final key without the package under test.
func referenceKey(t *testing.T, password []byte, p crypto.KeyParams) []byte {
	t.Helper()

	inner := sha256.Sum256(password)
	composite := sha256.Sum256(inner[:])

	block, err := aes.NewCipher(p.TransformSeed)
	require.NoError(t, err)

	buf := composite[:]
	for i := uint64(0); i < p.TransformRounds; i++ {
		block.Encrypt(buf[:16], buf[:16])
		block.Encrypt(buf[16:], buf[16:])
	}
	transformed := sha256.Sum256(buf)

	h := sha256.New()
	h.Write(p.MasterSeed)
	h.Write(transformed[:])
	return h.Sum(nil)
}

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name     string
		password string
		rounds   uint64
	}{
		{name: "zero rounds", password: "secret", rounds: 0},
		{name: "one round", password: "secret", rounds: 1},
		{name: "many rounds", password: "correct horse battery staple", rounds: 6000},
		{name: "empty password", password: "", rounds: 10},
		{name: "unicode password", password: "пароль123", rounds: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := testParams(tt.rounds)
			creds := crypto.NewPasswordCredentials([]byte(tt.password))
			defer creds.Destroy()

			key, err := crypto.DeriveKey(context.Background(), creds, params)
			require.NoError(t, err)
			defer key.Destroy()

			assert.Len(t, key.Key.Bytes(), models.KeySize)
			assert.Equal(t, referenceKey(t, []byte(tt.password), params), key.Key.Bytes())
			assert.Equal(t, params.IV, key.IV)
		})
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	params := testParams(500)

	derive := func() []byte {
		creds := crypto.NewPasswordCredentials([]byte("password"))
		defer creds.Destroy()
		key, err := crypto.DeriveKey(context.Background(), creds, params)
		require.NoError(t, err)
		out := append([]byte(nil), key.Key.Bytes()...)
		key.Destroy()
		return out
	}

	assert.Equal(t, derive(), derive())
}

func TestDeriveKeyInputsMatter(t *testing.T) {
	base := testParams(100)

	derive := func(password string, p crypto.KeyParams) []byte {
		creds := crypto.NewPasswordCredentials([]byte(password))
		defer creds.Destroy()
		key, err := crypto.DeriveKey(context.Background(), creds, p)
		require.NoError(t, err)
		return append([]byte(nil), key.Key.Bytes()...)
	}

	want := derive("password", base)

	otherSeed := base
	otherSeed.MasterSeed = bytes.Repeat([]byte{0x44}, models.SeedSize)

	otherTransform := base
	otherTransform.TransformSeed = bytes.Repeat([]byte{0x55}, models.SeedSize)

	fewerRounds := base
	fewerRounds.TransformRounds = 99

	assert.NotEqual(t, want, derive("Password", base))
	assert.NotEqual(t, want, derive("password", otherSeed))
	assert.NotEqual(t, want, derive("password", otherTransform))
	assert.NotEqual(t, want, derive("password", fewerRounds))
}

func TestDeriveKeyConsumedCredentials(t *testing.T) {
	creds := crypto.NewPasswordCredentials([]byte("password"))
	creds.Destroy()

	assert.True(t, creds.Destroyed())

	_, err := crypto.DeriveKey(context.Background(), creds, testParams(1))
	assert.ErrorIs(t, err, models.ErrCredentialsConsumed)
}

func TestDeriveKeyCancelled(t *testing.T) {
	creds := crypto.NewPasswordCredentials([]byte("password"))
	defer creds.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := crypto.DeriveKey(ctx, creds, testParams(1_000_000))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeriveKeyBadSeed(t *testing.T) {
	creds := crypto.NewPasswordCredentials([]byte("password"))
	defer creds.Destroy()

	params := testParams(1)
	params.TransformSeed = []byte("short")

	_, err := crypto.DeriveKey(context.Background(), creds, params)
	assert.Error(t, err)
}
