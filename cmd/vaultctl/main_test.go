package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/TheMichaelB/vaultctl/internal/config"
	"github.com/TheMichaelB/vaultctl/internal/events"
	"github.com/TheMichaelB/vaultctl/internal/keyring"
	"github.com/TheMichaelB/vaultctl/internal/models"
)

func env(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestPasswordSourceOrder(t *testing.T) {
	gokeyring.MockInit()
	path := filepath.Join(t.TempDir(), "vault.kdbx")

	store := keyring.New("vaultctl-test")
	require.NoError(t, store.SavePassword(path, "from-keyring"))

	prompted := 0
	prompt := func(string) ([]byte, error) {
		prompted++
		return []byte("from-prompt"), nil
	}

	tests := []struct {
		name    string
		src     passwordSource
		want    string
		source  string
		prompts int
	}{
		{
			name:   "flag wins",
			src:    passwordSource{flag: "from-flag", getenv: env(map[string]string{passwordEnv: "from-env"}), keyring: store, prompt: prompt},
			want:   "from-flag",
			source: "flag",
		},
		{
			name:   "env before keyring",
			src:    passwordSource{getenv: env(map[string]string{passwordEnv: "from-env"}), keyring: store, prompt: prompt},
			want:   "from-env",
			source: "env",
		},
		{
			name:   "keyring before prompt",
			src:    passwordSource{getenv: env(nil), keyring: store, prompt: prompt},
			want:   "from-keyring",
			source: "keyring",
		},
		{
			name:    "prompt last",
			src:     passwordSource{getenv: env(nil), prompt: prompt},
			want:    "from-prompt",
			source:  "prompt",
			prompts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompted = 0
			tt.src.logger = events.NewNopLogger()

			pw, source, err := tt.src.resolve(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(pw))
			assert.Equal(t, tt.source, source)
			assert.Equal(t, tt.prompts, prompted)
		})
	}
}

func TestPasswordSourceKeyringMiss(t *testing.T) {
	gokeyring.MockInit()

	src := passwordSource{
		getenv:  env(nil),
		keyring: keyring.New("vaultctl-test"),
		prompt:  func(string) ([]byte, error) { return []byte("typed"), nil },
		logger:  events.NewNopLogger(),
	}

	pw, source, err := src.resolve(filepath.Join(t.TempDir(), "other.kdbx"))
	require.NoError(t, err)
	assert.Equal(t, "typed", string(pw))
	assert.Equal(t, "prompt", source)
}

func TestPasswordSourceUnavailable(t *testing.T) {
	src := passwordSource{getenv: env(nil), logger: events.NewNopLogger()}

	_, _, err := src.resolve("vault.kdbx")
	assert.ErrorIs(t, err, errNoPassword)
}

func TestPasswordSourceCredentials(t *testing.T) {
	src := passwordSource{flag: "pw", getenv: env(nil), logger: events.NewNopLogger()}

	creds, err := src.credentials("vault.kdbx")
	require.NoError(t, err)
	assert.False(t, creds.Destroyed())
	creds.Destroy()
}

func TestApplyOverrides(t *testing.T) {
	defer func(level string) { logLevel = level }(logLevel)

	logLevel = "DEBUG"
	c := config.DefaultConfig()
	require.NoError(t, applyOverrides(c))
	assert.Equal(t, "debug", c.Log.Level)

	logLevel = "loud"
	err := applyOverrides(config.DefaultConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
	assert.Equal(t, models.ErrCodeConfig, models.ErrorCode(err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&models.IncorrectCredentialsError{}, 2},
		{fmt.Errorf("load: %w", models.NewBlockIntegrityError(3, "hash mismatch")), 3},
		{models.NewFormatError("header", "bad", models.ErrInvalidSignature), 4},
		{context.Canceled, 1},
		{errors.New("open container: not found"), 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}
