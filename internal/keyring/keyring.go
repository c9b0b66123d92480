// Package keyring stores container passwords in the OS keyring.
package keyring

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keyring service name used when none is configured.
const DefaultService = "vaultctl"

// ErrNotFound is returned when no password is stored for a container.
var ErrNotFound = keyring.ErrNotFound

// Store reads and writes passwords under one service name. Entries are
// keyed by the absolute container path.
type Store struct {
	service string
}

// New creates a store for service.
func New(service string) *Store {
	if service == "" {
		service = DefaultService
	}
	return &Store{service: service}
}

// Service returns the keyring service name.
func (s *Store) Service() string {
	return s.service
}

// SavePassword stores a password in the OS keyring
func (s *Store) SavePassword(containerPath, password string) error {
	account, err := Account(containerPath)
	if err != nil {
		return err
	}
	if err := keyring.Set(s.service, account, password); err != nil {
		return fmt.Errorf("save to keyring: %w", err)
	}
	return nil
}

// GetPassword retrieves a password from the OS keyring
func (s *Store) GetPassword(containerPath string) (string, error) {
	account, err := Account(containerPath)
	if err != nil {
		return "", err
	}
	return keyring.Get(s.service, account)
}

// DeletePassword removes a password from the OS keyring
func (s *Store) DeletePassword(containerPath string) error {
	account, err := Account(containerPath)
	if err != nil {
		return err
	}
	return keyring.Delete(s.service, account)
}

// HasPassword checks if a password is stored in the keyring
func (s *Store) HasPassword(containerPath string) bool {
	_, err := s.GetPassword(containerPath)
	return err == nil
}

// IsNotFound reports whether err means no entry exists.
func IsNotFound(err error) bool {
	return errors.Is(err, keyring.ErrNotFound)
}

// Account maps a container path to its keyring account name.
func Account(containerPath string) (string, error) {
	if containerPath == "" {
		return "", errors.New("container path is empty")
	}
	abs, err := filepath.Abs(containerPath)
	if err != nil {
		return "", fmt.Errorf("resolve container path: %w", err)
	}
	return abs, nil
}
