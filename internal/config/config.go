package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all application configuration.
type Config struct {
	// Logging
	Log LogConfig `mapstructure:"log" json:"log"`

	// Container loading limits and policies
	Load LoadConfig `mapstructure:"load" json:"load"`

	// OS keyring password source
	Keyring KeyringConfig `mapstructure:"keyring" json:"keyring"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // text, json
	File   string `mapstructure:"file" json:"file"`     // Log file path (empty = stderr)
	Color  bool   `mapstructure:"color" json:"color"`   // Colored level tags on terminals
}

// LoadConfig controls how containers are read and verified.
type LoadConfig struct {
	MaxFileSize        int64 `mapstructure:"max_file_size" json:"max_file_size"`               // Reject larger containers
	MaxBlockSize       int   `mapstructure:"max_block_size" json:"max_block_size"`             // Largest accepted hashed block
	ReadBufferSize     int   `mapstructure:"read_buffer_size" json:"read_buffer_size"`         // Ciphertext read chunk
	StrictTrailingData bool  `mapstructure:"strict_trailing_data" json:"strict_trailing_data"` // Fail on bytes after the final block
	VerifyHeaderHash   bool  `mapstructure:"verify_header_hash" json:"verify_header_hash"`     // Check Meta/HeaderHash when present
	AllowSymlinks      bool  `mapstructure:"allow_symlinks" json:"allow_symlinks"`             // Follow symlinked container paths
}

// KeyringConfig for the OS keyring password source.
type KeyringConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Service string `mapstructure:"service" json:"service"`
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "",
			Color:  true,
		},
		Load: LoadConfig{
			MaxFileSize:        512 * 1024 * 1024, // 512MB
			MaxBlockSize:       64 * 1024 * 1024,  // 64MB
			ReadBufferSize:     64 * 1024,
			StrictTrailingData: false,
			VerifyHeaderHash:   true,
			AllowSymlinks:      true,
		},
		Keyring: KeyringConfig{
			Enabled: false,
			Service: "vaultctl",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Load.MaxFileSize <= 0 {
		return errors.New("load.max_file_size must be positive")
	}

	if c.Load.MaxBlockSize <= 0 {
		return errors.New("load.max_block_size must be positive")
	}

	if c.Load.ReadBufferSize < 16 {
		return errors.New("load.read_buffer_size must be at least 16")
	}

	if c.Keyring.Enabled && c.Keyring.Service == "" {
		return errors.New("keyring.service is required when keyring is enabled")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	if c.Log.File == "" {
		return nil
	}

	dir := filepath.Dir(c.Log.File)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	return nil
}
