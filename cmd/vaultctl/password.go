package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"github.com/TheMichaelB/vaultctl/internal/crypto"
	"github.com/TheMichaelB/vaultctl/internal/events"
	"github.com/TheMichaelB/vaultctl/internal/keyring"
)

const passwordEnv = "VAULTCTL_PASSWORD"

var errNoPassword = errors.New("no password available: use --password, " + passwordEnv + " or run from a terminal")

// passwordSource resolves a container password from, in order, the flag,
// the environment, the OS keyring and an interactive prompt.
type passwordSource struct {
	flag    string
	getenv  func(string) string
	keyring *keyring.Store // nil when disabled
	prompt  func(string) ([]byte, error)
	logger  *events.Logger
}

func newPasswordSource(flag string, useKeyring bool) *passwordSource {
	s := &passwordSource{
		flag:   flag,
		getenv: os.Getenv,
		logger: logger,
	}
	if useKeyring && cfg.Keyring.Enabled {
		s.keyring = keyring.New(cfg.Keyring.Service)
	}
	if term.IsTerminal(int(syscall.Stdin)) {
		s.prompt = promptPassword
	}
	return s
}

// resolve returns the password and the name of the source it came from.
// The caller clears the returned slice.
func (s *passwordSource) resolve(path string) ([]byte, string, error) {
	if s.flag != "" {
		return []byte(s.flag), "flag", nil
	}

	if pw := s.getenv(passwordEnv); pw != "" {
		return []byte(pw), "env", nil
	}

	if s.keyring != nil {
		pw, err := s.keyring.GetPassword(path)
		if err == nil {
			return []byte(pw), "keyring", nil
		}
		if !keyring.IsNotFound(err) {
			s.logger.WithError(err).Warn("Keyring lookup failed")
		}
	}

	if s.prompt == nil {
		return nil, "", errNoPassword
	}

	pw, err := s.prompt(fmt.Sprintf("Password for %s: ", filepath.Base(path)))
	if err != nil {
		return nil, "", fmt.Errorf("read password: %w", err)
	}
	return pw, "prompt", nil
}

// credentials resolves the password and turns it into composite key
// credentials. The plaintext password is cleared before returning.
func (s *passwordSource) credentials(path string) (*crypto.Credentials, error) {
	pw, source, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(pw)

	s.logger.WithField("source", source).Debug("Resolved container password")
	return crypto.NewPasswordCredentials(pw), nil
}

func promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password without echo
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // New line after password

	if err != nil {
		return nil, err
	}

	return password, nil
}
